// Package local runs generated tests directly on the host with os/exec,
// inside a throwaway directory and an allowlist-only environment.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/sandbox"
)

const defaultTimeout = 2 * time.Minute

func init() {
	sandbox.Register("local", openRunner)
}

// Config is the configuration for the local runner.
type Config struct {
	// Env is the full environment visible to test processes. Nothing from
	// the host environment leaks through.
	Env map[string]string

	// Timeout bounds a single execution when the job does not set one.
	Timeout time.Duration

	// KeepWorkdirs leaves job directories behind for debugging.
	KeepWorkdirs bool
}

type runner struct {
	config Config
}

func openRunner(registrableComponentConfig database.RegistrableComponentConfig) (sandbox.Runner, error) {
	config := Config{
		Env: map[string]string{
			"PATH": "/usr/local/bin:/usr/bin:/bin",
		},
		Timeout: defaultTimeout,
	}

	raw, err := yaml.Marshal(registrableComponentConfig.Options)
	if err != nil {
		return nil, fmt.Errorf("local: could not load configuration: %v", err)
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("local: could not load configuration: %v", err)
	}

	return &runner{config: config}, nil
}

// Run writes the job files into a fresh temporary directory and executes the
// language's test command there. The child gets its own process group so a
// cancelled context kills the whole tree, and only the configured environment
// variables are visible to it.
func (r *runner) Run(ctx context.Context, job sandbox.Job) (*sandbox.Result, error) {
	spec, err := sandbox.Language(job.Language)
	if err != nil {
		return nil, err
	}

	dir, err := ioutil.TempDir("", "ai-test-agent-job-")
	if err != nil {
		return nil, commonerr.ErrFilesystem
	}
	if !r.config.KeepWorkdirs {
		defer os.RemoveAll(dir)
	}

	for name, content := range spec.Files(job) {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return nil, commonerr.ErrFilesystem
		}
	}

	timeout := job.Timeout
	if timeout == 0 {
		timeout = r.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return r.execute(ctx, dir, spec.Command)
}

// execute runs a test command in dir with its own process group and the
// allowlisted environment. Cancelling the context kills the whole group.
func (r *runner) execute(ctx context.Context, dir string, command []string) (*sandbox.Result, error) {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = isolatedEnv(r.config.Env, dir)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "local: could not start test command")
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		// Kill the process group, not just the direct child.
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, errors.Wrap(ctx.Err(), "local: execution cancelled")
	case waitErr = <-done:
	}

	exitCode := 0
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, errors.Wrap(waitErr, "local: could not execute test command")
		}
		exitCode = exitErr.ExitCode()
	}

	return &sandbox.Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

// isolatedEnv builds the child environment from the allowlist only; host
// variables are never passed through. HOME and TMPDIR point inside the job
// directory so toolchains that insist on writing caches stay contained.
func isolatedEnv(allow map[string]string, dir string) []string {
	env := make([]string, 0, len(allow)+2)
	for key, value := range allow {
		env = append(env, key+"="+value)
	}
	if _, ok := allow["HOME"]; !ok {
		env = append(env, "HOME="+dir)
	}
	if _, ok := allow["TMPDIR"]; !ok {
		env = append(env, "TMPDIR="+dir)
	}
	return env
}
