package config

import (
	"testing"
)

// Load runs from the package directory, which carries no config.yaml, so
// these tests exercise the defaults and environment overrides.

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Output.Dir != "data" {
		t.Errorf("Output.Dir = %q, want data", cfg.Output.Dir)
	}
	if cfg.Log.Level != "info" || !cfg.Log.Pretty {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Report.TopN != 5 {
		t.Errorf("Report.TopN = %d, want 5", cfg.Report.TopN)
	}
	if cfg.Cashback.CurrentFlatPct != 1.0 {
		t.Errorf("Cashback.CurrentFlatPct = %v, want 1.0", cfg.Cashback.CurrentFlatPct)
	}
	if got := cfg.Cashback.MerchantRates["Viettel"]; got != 2 {
		t.Errorf("Viettel rate = %v, want 2", got)
	}
	if got := cfg.Cashback.MerchantRates["Mobifone"]; got != 2.5 {
		t.Errorf("Mobifone rate = %v, want 2.5", got)
	}
	if cfg.BigQuery.Table != "master_merged" {
		t.Errorf("BigQuery.Table = %q, want master_merged", cfg.BigQuery.Table)
	}
	if cfg.Inputs.Transactions != "" {
		t.Errorf("Inputs.Transactions = %q, want empty", cfg.Inputs.Transactions)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("REVPIPE_LOG_LEVEL", "debug")
	t.Setenv("REVPIPE_OUTPUT_DIR", "/tmp/out")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Output.Dir != "/tmp/out" {
		t.Errorf("Output.Dir = %q, want /tmp/out", cfg.Output.Dir)
	}
}

func TestToLoggerOptions(t *testing.T) {
	c := LogConfig{Level: "warn", Pretty: true}
	opts := c.ToLoggerOptions()
	if opts.Level != "warn" || !opts.Pretty {
		t.Errorf("unexpected options: %+v", opts)
	}
}
