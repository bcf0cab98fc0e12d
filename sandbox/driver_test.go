package sandbox

import (
	"strings"
	"testing"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

func TestLanguagePython(t *testing.T) {
	spec, err := Language("python")
	if err != nil {
		t.Fatalf("Language: %v", err)
	}
	if spec.SourceFile != "user_code.py" || spec.TestFile != "test_code.py" {
		t.Fatalf("unexpected file layout: %+v", spec)
	}
	if len(spec.Command) == 0 || spec.Command[0] != "python3" {
		t.Fatalf("unexpected command: %v", spec.Command)
	}
}

func TestLanguageUnsupported(t *testing.T) {
	_, err := Language("brainfuck")
	if err == nil {
		t.Fatalf("expected an error for an unsupported language")
	}
	if _, ok := err.(*commonerr.ErrBadRequest); !ok {
		t.Fatalf("expected ErrBadRequest, got %T", err)
	}
}

func TestSupported(t *testing.T) {
	supported := Supported()
	found := make(map[string]bool)
	for _, name := range supported {
		found[name] = true
	}
	if !found["python"] || !found["go"] {
		t.Fatalf("expected python and go to be supported, got %v", supported)
	}
}

func TestFilesPython(t *testing.T) {
	spec, _ := Language("python")
	files := spec.Files(Job{
		Language: "python",
		Source:   "def add(a, b):\n    return a + b",
		Tests:    "from user_code import add\n\ndef test_add():\n    assert add(1, 2) == 3",
	})

	if files["user_code.py"] != "def add(a, b):\n    return a + b" {
		t.Fatalf("source was altered: %q", files["user_code.py"])
	}
	if !strings.Contains(files["test_code.py"], "def test_add()") {
		t.Fatalf("tests missing: %q", files["test_code.py"])
	}
}

func TestFilesGoPrelude(t *testing.T) {
	spec, _ := Language("go")

	// A bare function gets the package header prepended.
	files := spec.Files(Job{
		Language: "go",
		Source:   "func Add(a, b int) int { return a + b }",
		Tests:    "package usercode\n\nimport \"testing\"",
	})
	if !strings.HasPrefix(files["user_code.go"], "package usercode\n\n") {
		t.Fatalf("prelude not prepended: %q", files["user_code.go"])
	}
	if _, ok := files["go.mod"]; !ok {
		t.Fatalf("go.mod not laid out")
	}

	// A submission that already carries a package clause is left alone.
	files = spec.Files(Job{
		Language: "go",
		Source:   "package usercode\n\nfunc Add(a, b int) int { return a + b }",
	})
	if strings.Count(files["user_code.go"], "package usercode") != 1 {
		t.Fatalf("prelude prepended twice: %q", files["user_code.go"])
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(database.RegistrableComponentConfig{Type: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected an error for an unknown driver")
	}
}
