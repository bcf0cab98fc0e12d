package report

import (
	"strings"
	"testing"

	"github.com/Cobb-ukr/ai-test-agent/database"
)

func TestBuildMarkdown(t *testing.T) {
	submission := database.Submission{
		Model:    database.Model{ID: 3},
		Language: "python",
		Function: "add",
		Source:   "def add(a, b):\n    return a + b",
	}
	run := database.Run{
		Model:          database.Model{ID: 9},
		SubmissionID:   3,
		Status:         database.PassedStatus,
		GeneratedTests: "from user_code import add\n\ndef test_add():\n    assert add(1, 2) == 3",
		Output:         "1 passed in 0.01s",
		Summary:        "1 passed in 0.01s",
	}

	doc := BuildMarkdown(submission, run)

	if !strings.HasPrefix(doc, "# AI-Powered Unit Test Report\n") {
		t.Fatalf("missing title: %q", doc[:40])
	}

	for _, section := range []string{
		"## User-Submitted Code:",
		"## Generated Test Cases:",
		"## Test Execution Output:",
		"## Summary:",
	} {
		if !strings.Contains(doc, section) {
			t.Fatalf("missing section %q", section)
		}
	}

	if !strings.Contains(doc, "def add(a, b)") {
		t.Fatalf("source code not embedded")
	}
	if !strings.Contains(doc, "def test_add()") {
		t.Fatalf("generated tests not embedded")
	}
	if !strings.Contains(doc, "```python\n") {
		t.Fatalf("code sections are not fenced with the language")
	}
}

func TestNewServiceDefaults(t *testing.T) {
	dir := t.TempDir()

	svc, err := NewService(Config{Dir: dir})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.renderer != "pandoc" {
		t.Fatalf("unexpected default renderer: %q", svc.renderer)
	}
}

func TestNewServiceUnknownRenderer(t *testing.T) {
	_, err := NewService(Config{Dir: t.TempDir(), Renderer: "quill"})
	if err == nil {
		t.Fatalf("expected an error for an unknown renderer")
	}
}
