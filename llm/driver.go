// Package llm exposes the test generator drivers. A generator turns a
// submitted piece of source code into a runnable test file by asking an
// external language model.
package llm

import (
	"context"
	"fmt"

	"github.com/Cobb-ukr/ai-test-agent/database"
)

// Request describes the source code that tests should be generated for.
type Request struct {
	// Language of the submitted source ("python", "go", ...).
	Language string

	// Function is the entry point the tests must import and exercise.
	Function string

	// Source is the code under test, verbatim.
	Source string
}

// Result is the outcome of a generation call.
type Result struct {
	// Raw is the model output before any cleaning.
	Raw string

	// Tests is the executable test file: fences stripped and the import
	// preamble prepended.
	Tests string
}

// Generator produces test files for submitted source code.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

var generators = make(map[string]Driver)

// Driver is a function that opens a Generator specified by its type and
// specific configuration.
type Driver func(database.RegistrableComponentConfig) (Generator, error)

// Register makes a generator Driver available by the provided name.
//
// If this function is called twice with the same name or if the Driver is
// nil, it panics.
func Register(name string, driver Driver) {
	if driver == nil {
		panic("llm: could not register nil Driver")
	}
	if _, dup := generators[name]; dup {
		panic("llm: could not register duplicate Driver: " + name)
	}
	generators[name] = driver
}

// Open opens a Generator specified by a configuration.
func Open(cfg database.RegistrableComponentConfig) (Generator, error) {
	driver, ok := generators[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("llm: unknown Driver %q (forgotten configuration or import?)", cfg.Type)
	}
	return driver(cfg)
}
