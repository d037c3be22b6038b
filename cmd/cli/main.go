package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tnminh/revenue-pipeline/internal/config"
	"github.com/tnminh/revenue-pipeline/internal/domain"
	"github.com/tnminh/revenue-pipeline/internal/gcs"
	infraBQ "github.com/tnminh/revenue-pipeline/internal/infra/bigquery"
	"github.com/tnminh/revenue-pipeline/internal/insights"
	"github.com/tnminh/revenue-pipeline/internal/logger"
	"github.com/tnminh/revenue-pipeline/internal/pipeline"
	"github.com/tnminh/revenue-pipeline/internal/report"
	"github.com/tnminh/revenue-pipeline/internal/tabular"
	"github.com/tnminh/revenue-pipeline/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.ToLoggerOptions())

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runPipeline(log, cfg)
	case "validate":
		runValidate(log, cfg)
	case "publish":
		runPublish(log, cfg)
	case "insights":
		runInsights(log, cfg)
	case "upload":
		runUpload(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Revenue Pipeline CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Reconcile and enrich the three raw tables, write all artifacts")
	fmt.Println("  validate  Re-check the merged output table")
	fmt.Println("  publish   Run the pipeline and publish the merged table to BigQuery/GCS")
	fmt.Println("  insights  Run the pipeline and generate a narrative summary")
	fmt.Println("  upload    Upload a local file to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// inputFlags registers the shared input/output overrides on fs and
// returns the pipeline options builder.
func inputFlags(fs *flag.FlagSet, cfg *config.Config) func(ctx context.Context, log zerolog.Logger) (pipeline.Options, *gcs.Store) {
	transactions := fs.String("transactions", cfg.Inputs.Transactions, "raw transactions table (path or gs:// URI)")
	commission := fs.String("commission", cfg.Inputs.Commission, "raw commission table (path or gs:// URI)")
	userInfo := fs.String("user-info", cfg.Inputs.UserInfo, "raw user profile table (path or gs:// URI)")
	out := fs.String("out", cfg.Output.Dir, "output directory")

	return func(ctx context.Context, log zerolog.Logger) (pipeline.Options, *gcs.Store) {
		if *transactions == "" || *commission == "" || *userInfo == "" {
			log.Fatal().Msg("Error: -transactions, -commission and -user-info are required (flags or config)")
		}

		opts := pipeline.Options{
			Transactions: *transactions,
			Commission:   *commission,
			UserInfo:     *userInfo,
			OutputDir:    *out,
			Cashback:     report.TableFromPercentages(cfg.Cashback.CurrentFlatPct, cfg.Cashback.MerchantRates),
			TopN:         cfg.Report.TopN,
		}

		var store *gcs.Store
		for _, loc := range []string{*transactions, *commission, *userInfo} {
			if strings.HasPrefix(loc, "gs://") {
				s, err := gcs.NewStore(ctx)
				if err != nil {
					log.Fatal().Err(err).Msg("Failed to create GCS client")
				}
				store = s
				opts.Fetcher = s
				break
			}
		}
		return opts, store
	}
}

func execute(ctx context.Context, log zerolog.Logger, opts pipeline.Options) *pipeline.State {
	state, err := pipeline.Run(ctx, opts)
	if err != nil {
		var dup *domain.DuplicateKeyError
		if errors.As(err, &dup) {
			log.Fatal().
				Str("table", dup.Table).
				Str("field", dup.Field).
				Ints64(dup.Field, dup.Keys).
				Msg("Key-integrity violation, aborting before join")
		}
		log.Fatal().Err(err).Msg("Pipeline run failed")
	}
	return state
}

func runPipeline(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	build := inputFlags(fs, cfg)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	opts, store := build(ctx, log)
	if store != nil {
		defer store.Close()
	}

	state := execute(ctx, log, opts)
	fmt.Printf("Run %s completed: %d enriched rows, %d artifacts in %s\n",
		state.RunID, len(state.Enriched), len(state.Written), opts.OutputDir)
}

func runValidate(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", filepath.Join(cfg.Output.Dir, "master_merged.csv"), "merged table to validate")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var fetch tabular.Fetcher
	if strings.HasPrefix(*file, "gs://") {
		s, err := gcs.NewStore(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer s.Close()
		fetch = s
	}

	rep, err := validate.CheckFile(ctx, fetch, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Validation failed to load the merged table")
	}

	for _, f := range rep.Findings {
		evt := log.Info()
		switch f.Severity {
		case validate.SeverityError:
			evt = log.Error()
		case validate.SeverityWarning:
			evt = log.Warn()
		}
		evt.Str("check", f.Check).Msg(f.Detail)
	}

	if n := rep.Errors(); n > 0 {
		log.Fatal().Int("errors", n).Msg("Merged table failed validation")
	}
	fmt.Printf("Validated %d rows: OK (%d advisory findings)\n", rep.Rows, len(rep.Findings))
}

func runPublish(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	build := inputFlags(fs, cfg)
	project := fs.String("project", cfg.BigQuery.ProjectID, "BigQuery project id")
	dataset := fs.String("dataset", cfg.BigQuery.Dataset, "BigQuery dataset")
	table := fs.String("table", cfg.BigQuery.Table, "BigQuery table")
	bucket := fs.String("bucket", cfg.GCS.Bucket, "GCS bucket for artifact upload (optional)")
	fs.Parse(os.Args[2:])

	if *project == "" || *dataset == "" {
		log.Fatal().Msg("Error: -project and -dataset are required (flags or config)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	opts, store := build(ctx, log)
	if store != nil {
		defer store.Close()
	}
	state := execute(ctx, log, opts)

	repo, err := infraBQ.NewEnrichedRepository(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	now := time.Now().UTC()
	rows := make([]*infraBQ.EnrichedRow, 0, len(state.Enriched))
	for _, e := range state.Enriched {
		rows = append(rows, infraBQ.FromDomain(e, state.RunID, now))
	}
	if err := repo.InsertEnriched(ctx, *dataset, *table, rows); err != nil {
		log.Fatal().Err(err).Msg("Publishing enriched rows failed")
	}

	count, err := repo.CountRunRows(ctx, *dataset, *table, state.RunID)
	if err != nil {
		log.Fatal().Err(err).Msg("Read-back count failed")
	}
	if count != int64(len(rows)) {
		log.Fatal().
			Int64("published", count).
			Int("expected", len(rows)).
			Msg("Read-back count mismatch")
	}
	log.Info().Int64("rows", count).Str("table", *dataset+"."+*table).Msg("Published to BigQuery")

	if *bucket != "" {
		s := store
		if s == nil {
			s, err = gcs.NewStore(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create GCS client")
			}
			defer s.Close()
		}
		for _, path := range state.Written {
			object := filepath.Join(state.RunID, filepath.Base(path))
			if err := s.Upload(ctx, *bucket, object, path); err != nil {
				log.Fatal().Err(err).Str("file", path).Msg("Artifact upload failed")
			}
		}
		log.Info().Str("bucket", *bucket).Int("artifacts", len(state.Written)).Msg("Artifacts uploaded")
	}

	fmt.Printf("Publish for run %s completed.\n", state.RunID)
}

func runInsights(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	build := inputFlags(fs, cfg)
	model := fs.String("model", cfg.Insights.Model, "Gemini model name")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	opts, store := build(ctx, log)
	if store != nil {
		defer store.Close()
	}
	state := execute(ctx, log, opts)

	narrative, err := insights.Generate(ctx, *model, state.Summary)
	if err != nil {
		log.Fatal().Err(err).Msg("Narrative generation failed")
	}

	path := filepath.Join(opts.OutputDir, "insights.md")
	if err := writeFileAtomic(path, []byte(narrative)); err != nil {
		log.Fatal().Err(err).Msg("Writing insights failed")
	}
	fmt.Printf("Narrative written to %s\n", path)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func runUpload(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucket := fs.String("bucket", cfg.GCS.Bucket, "GCS bucket name")
	object := fs.String("object", "", "GCS object name (defaults to filename)")
	file := fs.String("file", "", "path to local file")
	fs.Parse(os.Args[2:])

	if *bucket == "" || *file == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *object == "" {
		*object = filepath.Base(*file)
	}

	ctx := logger.WithContext(context.Background(), log)

	store, err := gcs.NewStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer store.Close()

	log.Info().
		Str("bucket", *bucket).
		Str("object", *object).
		Str("file", *file).
		Msg("Uploading file to GCS")

	if err := store.Upload(ctx, *bucket, *object, *file); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to gs://%s/%s\n", *file, *bucket, *object)
}
