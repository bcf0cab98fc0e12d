// Package docker runs generated tests inside short-lived containers via the
// Docker Engine API. The job directory is bind-mounted read-write and the
// container is force-removed afterwards, whatever the verdict.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/sandbox"
)

const (
	jobMountPoint  = "/job"
	defaultTimeout = 5 * time.Minute
)

func init() {
	sandbox.Register("docker", openRunner)
}

// Config is the configuration for the docker runner.
type Config struct {
	// Images maps a language to the image that provides its test
	// toolchain. The image must carry the command from the language spec
	// (pytest, the go tool, ...).
	Images map[string]string

	// Timeout bounds a single execution when the job does not set one.
	Timeout time.Duration
}

type runner struct {
	config Config
}

func openRunner(registrableComponentConfig database.RegistrableComponentConfig) (sandbox.Runner, error) {
	config := Config{
		Images: map[string]string{
			"python": "python:3.12-slim",
			"go":     "golang:1.21-alpine",
		},
		Timeout: defaultTimeout,
	}

	raw, err := yaml.Marshal(registrableComponentConfig.Options)
	if err != nil {
		return nil, fmt.Errorf("docker: could not load configuration: %v", err)
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("docker: could not load configuration: %v", err)
	}

	return &runner{config: config}, nil
}

func (r *runner) Run(ctx context.Context, job sandbox.Job) (*sandbox.Result, error) {
	spec, err := sandbox.Language(job.Language)
	if err != nil {
		return nil, err
	}

	image, ok := r.config.Images[job.Language]
	if !ok {
		return nil, commonerr.NewBadRequestError("docker: no image configured for language " + job.Language)
	}

	dir, err := ioutil.TempDir("", "ai-test-agent-job-")
	if err != nil {
		return nil, commonerr.ErrFilesystem
	}
	defer os.RemoveAll(dir)

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

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "unable to read Docker environment")
	}
	defer cli.Close()

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:           image,
		Cmd:             spec.Command,
		WorkingDir:      jobMountPoint,
		NetworkDisabled: true,
	}, &container.HostConfig{
		Binds: []string{dir + ":" + jobMountPoint},
	}, nil, nil, "")
	if err != nil {
		return nil, errors.Wrap(err, "unable to create Docker container")
	}

	defer func() {
		stopTimeout := 2
		cli.ContainerStop(context.Background(), resp.ID, container.StopOptions{Timeout: &stopTimeout})
		cli.ContainerRemove(context.Background(), resp.ID, types.ContainerRemoveOptions{Force: true})
	}()

	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return nil, errors.Wrap(err, "unable to start Docker container")
	}

	exitCode, err := awaitContainer(ctx, cli, resp.ID)
	if err != nil {
		return nil, err
	}

	logs, err := cli.ContainerLogs(ctx, resp.ID, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, errors.Wrap(err, "error reading Docker container logs")
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, errors.Wrap(err, "error demultiplexing Docker container logs")
	}

	return &sandbox.Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

func awaitContainer(ctx context.Context, cli *client.Client, id string) (int, error) {
	waitCh, errCh := cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, errors.Wrap(err, "error awaiting Docker container")
	case wait := <-waitCh:
		if wait.Error != nil {
			return 0, fmt.Errorf("docker: container wait error: %s", wait.Error.Message)
		}
		return int(wait.StatusCode), nil
	}
}
