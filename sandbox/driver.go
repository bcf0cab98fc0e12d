// Package sandbox exposes the runner drivers that execute generated tests
// in isolation from the host.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

// Job bundles everything a runner needs to execute one test file against
// one piece of submitted source.
type Job struct {
	Language string
	Source   string
	Tests    string
	Timeout  time.Duration
}

// Result captures the observable outcome of a test execution. A non-zero
// exit code is a verdict, not a transport error.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes generated tests in an isolated environment.
type Runner interface {
	Run(ctx context.Context, job Job) (*Result, error)
}

var runners = make(map[string]Driver)

// Driver is a function that opens a Runner specified by its type and
// specific configuration.
type Driver func(database.RegistrableComponentConfig) (Runner, error)

// Register makes a runner Driver available by the provided name.
//
// If this function is called twice with the same name or if the Driver is
// nil, it panics.
func Register(name string, driver Driver) {
	if driver == nil {
		panic("sandbox: could not register nil Driver")
	}
	if _, dup := runners[name]; dup {
		panic("sandbox: could not register duplicate Driver: " + name)
	}
	runners[name] = driver
}

// Open opens a Runner specified by a configuration.
func Open(cfg database.RegistrableComponentConfig) (Runner, error) {
	driver, ok := runners[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("sandbox: unknown Driver %q (forgotten configuration or import?)", cfg.Type)
	}
	return driver(cfg)
}

// LanguageSpec describes how a language lays out and runs a test job.
type LanguageSpec struct {
	// SourceFile is the filename the submitted code is written to.
	SourceFile string

	// TestFile is the filename the generated tests are written to.
	TestFile string

	// Command invokes the language's test tool inside the job directory.
	Command []string

	// Extra holds additional files required by the toolchain.
	Extra map[string]string

	// Prelude is prepended to the source file when the submission does not
	// carry its own package/module header.
	Prelude string
}

// Files lays out the job directory contents for this language.
func (spec LanguageSpec) Files(job Job) map[string]string {
	source := job.Source
	if spec.Prelude != "" && !strings.HasPrefix(strings.TrimSpace(source), "package ") {
		source = spec.Prelude + source
	}

	files := map[string]string{
		spec.SourceFile: source,
		spec.TestFile:   job.Tests,
	}
	for name, content := range spec.Extra {
		files[name] = content
	}
	return files
}

var languages = map[string]LanguageSpec{
	"python": {
		SourceFile: "user_code.py",
		TestFile:   "test_code.py",
		Command:    []string{"python3", "-m", "pytest", "test_code.py", "--tb=short", "--no-header", "--disable-warnings"},
	},
	"go": {
		SourceFile: "user_code.go",
		TestFile:   "user_code_test.go",
		Command:    []string{"go", "test", "."},
		Extra: map[string]string{
			"go.mod": "module usercode\n\ngo 1.21\n",
		},
		Prelude: "package usercode\n\n",
	},
}

// Language resolves the spec for a submitted language.
func Language(name string) (LanguageSpec, error) {
	spec, ok := languages[name]
	if !ok {
		return LanguageSpec{}, commonerr.NewBadRequestError("sandbox: unsupported language " + name)
	}
	return spec, nil
}

// Supported lists the languages the sandbox knows how to run.
func Supported() []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	return names
}
