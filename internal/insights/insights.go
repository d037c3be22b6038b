// Package insights turns the aggregate summary into a short narrative
// report via Gemini. The narrative is a presentation artifact only; the
// deterministic pipeline outputs are produced before and independently of
// this step.
package insights

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/tnminh/revenue-pipeline/internal/report"
)

// Generate produces a markdown narrative over the summary using the given
// model.
func Generate(ctx context.Context, model string, s *report.Summary) (string, error) {
	prompt :=
		"You are a payments business analyst.\n\n" +
			"Task:\n" +
			"- Read the aggregate tables below, computed from a merchant commission dataset.\n" +
			"- Write a concise narrative (under 400 words) covering: monthly revenue trend,\n" +
			"  strongest and weakest weekdays, the most valuable demographic segments,\n" +
			"  top-user concentration, and the cashback proposal's cost impact.\n" +
			"- Use plain Markdown with short sections. Do not invent numbers that are not\n" +
			"  in the tables. Do not wrap the response in code fences.\n\n" +
			renderSummary(s)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("insights.Generate: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("insights.Generate: generate content: %w", err)
	}

	text := cleanNarrative(resp.Text())
	if text == "" {
		return "", fmt.Errorf("insights.Generate: empty response from model")
	}
	return text, nil
}

// renderSummary flattens the summary tables into pipe-separated text,
// compact enough to stay well inside the prompt budget.
func renderSummary(s *report.Summary) string {
	var b strings.Builder
	for _, a := range s.Artifacts() {
		fmt.Fprintf(&b, "## %s\n", a.Name)
		b.WriteString(strings.Join(a.Headers, " | "))
		b.WriteString("\n")
		for _, row := range a.Rows {
			b.WriteString(strings.Join(row, " | "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "rows_without_revenue: %d\n", s.MissingRevenue)
	return b.String()
}

// cleanNarrative strips Markdown code fences if the model ignored the
// instruction not to use them.
func cleanNarrative(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
