// Package report renders finished runs into PDF artifacts. The document is
// built as markdown and handed to a registered renderer (local pandoc or a
// pandoc container).
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Cobb-ukr/ai-test-agent/database"
)

// Config is the configuration for the report service.
type Config struct {
	// Dir is where markdown and PDF artifacts are written.
	Dir string

	// Renderer selects the registered renderer ("pandoc" or "docker").
	Renderer string
}

// Service turns runs into report artifacts on disk.
type Service struct {
	dir      string
	renderer string
}

// NewService ensures the reports directory exists and resolves the renderer.
func NewService(cfg Config) (*Service, error) {
	if cfg.Dir == "" {
		cfg.Dir = "reports"
	}
	if cfg.Renderer == "" {
		cfg.Renderer = "pandoc"
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, errors.Wrap(err, "unable to create reports directory")
	}
	if _, ok := renderers[cfg.Renderer]; !ok {
		return nil, fmt.Errorf("report: unknown renderer %q", cfg.Renderer)
	}

	return &Service{dir: cfg.Dir, renderer: cfg.Renderer}, nil
}

// Generate writes the markdown document for a run and renders it to PDF.
// The returned report carries the artifact location but no database ID; the
// caller records it.
func (s *Service) Generate(submission database.Submission, run database.Run) (database.Report, error) {
	base := fmt.Sprintf("test_report_%s", time.Now().Format("20060102_150405"))

	markdownPath := filepath.Join(s.dir, base+".md")
	if err := os.WriteFile(markdownPath, []byte(BuildMarkdown(submission, run)), 0644); err != nil {
		return database.Report{}, errors.Wrap(err, "unable to write report markdown")
	}

	if err := render(s.renderer, s.dir, base); err != nil {
		return database.Report{}, err
	}

	filename := base + ".pdf"
	return database.Report{
		RunID:    run.ID,
		Filename: filename,
		Path:     filepath.Join(s.dir, filename),
	}, nil
}

// BuildMarkdown lays out the report document: a header with the generation
// time followed by the submitted code, the generated tests, the execution
// output and the summary.
func BuildMarkdown(submission database.Submission, run database.Run) string {
	var b strings.Builder

	b.WriteString("# AI-Powered Unit Test Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Run %d over submission %d (%s), status %s.\n\n",
		run.ID, submission.ID, submission.Language, run.Status)

	section(&b, "User-Submitted Code:", submission.Language, submission.Source)
	section(&b, "Generated Test Cases:", submission.Language, run.GeneratedTests)
	section(&b, "Test Execution Output:", "", run.Output)
	section(&b, "Summary:", "", run.Summary)

	return b.String()
}

func section(b *strings.Builder, title, language, content string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "```%s\n%s\n```\n\n", language, strings.TrimRight(content, "\n"))
}
