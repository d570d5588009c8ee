// Package report writes the review artifacts: one Markdown report per
// agent and the executive summary that links them.
package report

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/config"
)

//go:embed templates/*.md
var templates embed.FS

// timestampLayout names the artifact files of one run.
const timestampLayout = "2006-01-02-15-04-05"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeAgentName maps an agent name to a filename-safe form.
// Idempotent.
func SanitizeAgentName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// Writer persists one run's artifacts under OutputDir.
type Writer struct {
	OutputDir string
	Clock     func() time.Time
	Logger    *slog.Logger
}

// NewWriter creates a writer. A nil clock means time.Now.
func NewWriter(outputDir string, clock func() time.Time, logger *slog.Logger) *Writer {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{OutputDir: outputDir, Clock: clock, Logger: logger}
}

// Write emits the per-agent reports and the executive summary, and
// returns the path of the executive summary file.
func (w *Writer) Write(repository string, results []agent.ReviewResult, summaryContent, findingsSummary string) (string, error) {
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", w.OutputDir, err)
	}

	now := w.Clock()
	ts := now.Format(timestampLayout)
	date := now.Format("2006-01-02 15:04:05")

	agentTemplate, err := w.loadTemplate("agent_report.md")
	if err != nil {
		return "", err
	}

	var links []string
	successCount := 0
	for _, r := range results {
		if r.Success {
			successCount++
		}
		name := SanitizeAgentName(r.Agent.Name)
		filename := fmt.Sprintf("review_%s_%s.md", name, ts)

		content := r.Content
		if !r.Success {
			content = fmt.Sprintf("Review failed: %s", r.ErrorMessage)
		}
		body := strings.NewReplacer(
			"{{agent}}", r.Agent.EffectiveDisplayName(),
			"{{date}}", date,
			"{{repository}}", repository,
			"{{content}}", content,
		).Replace(agentTemplate)

		path := filepath.Join(w.OutputDir, filename)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return "", fmt.Errorf("failed to write report %s: %w", path, err)
		}
		links = append(links, fmt.Sprintf("- [%s](%s)", r.Agent.EffectiveDisplayName(), filename))
		w.Logger.Info("Wrote agent report", "agent", r.Agent.Name, "path", path)
	}

	summaryTemplate, err := w.loadTemplate("executive_summary.md")
	if err != nil {
		return "", err
	}
	summary := strings.NewReplacer(
		"{{date}}", date,
		"{{repository}}", repository,
		"{{agentCount}}", fmt.Sprintf("%d", len(results)),
		"{{successCount}}", fmt.Sprintf("%d", successCount),
		"{{failureCount}}", fmt.Sprintf("%d", len(results)-successCount),
		"{{summaryContent}}", summaryContent,
		"{{findingsSummary}}", emptyFallback(findingsSummary, "No findings were extracted."),
		"{{reportLinks}}", strings.Join(links, "\n"),
	).Replace(summaryTemplate)

	summaryPath := filepath.Join(w.OutputDir, fmt.Sprintf("executive_summary_%s.md", ts))
	if err := os.WriteFile(summaryPath, []byte(summary), 0o644); err != nil {
		return "", fmt.Errorf("failed to write executive summary %s: %w", summaryPath, err)
	}
	w.Logger.Info("Wrote executive summary", "path", summaryPath, "agents", len(results), "succeeded", successCount)
	return summaryPath, nil
}

// loadTemplate reads a template from the override directory when the
// environment names one, falling back to the embedded copy.
func (w *Writer) loadTemplate(name string) (string, error) {
	if dir := config.TemplateDir(); dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		w.Logger.Warn("Template override unreadable, using embedded template",
			"template", name, "dir", dir, "error", err)
	}
	data, err := templates.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded template %s: %w", name, err)
	}
	return string(data), nil
}

func emptyFallback(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
