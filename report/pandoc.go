package report

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
)

const pandocImage = "pandoc/latex"

// Renderer converts <dir>/<base>.md into <dir>/<base>.pdf.
type Renderer func(dir, base string) error

var renderers = map[string]Renderer{
	"pandoc": pandocRenderer,
	"docker": dockerRenderer,
}

func render(name, dir, base string) error {
	renderer, ok := renderers[name]
	if !ok {
		return fmt.Errorf("report: unknown renderer %q", name)
	}
	if err := renderer(dir, base); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, base+".pdf")); err != nil && os.IsNotExist(err) {
		return errors.Wrap(err, "output not generated; verify your pandoc installation is up to date")
	}
	return nil
}

var pandocArgs = []string{"-f", "markdown", "--pdf-engine=xelatex", "-o"}

// pandocRenderer shells out to a local pandoc binary.
func pandocRenderer(dir, base string) error {
	args := append(append([]string{}, pandocArgs...),
		filepath.Join(dir, base+".pdf"), filepath.Join(dir, base+".md"))

	outputRaw, err := exec.Command("pandoc", args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "error calling pandoc: %s", string(outputRaw))
	}
	return nil
}

// dockerRenderer runs pandoc from its official image with the reports
// directory bind-mounted at /data.
func dockerRenderer(dir, base string) error {
	ctx := context.Background()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return errors.Wrap(err, "unable to read Docker environment")
	}
	defer cli.Close()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrap(err, "unable to resolve reports directory")
	}

	cmd := append(append([]string{}, pandocArgs...), "/data/"+base+".pdf", "/data/"+base+".md")

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:      pandocImage,
		Cmd:        cmd,
		WorkingDir: "/data",
	}, &container.HostConfig{
		Binds: []string{absDir + ":/data"},
	}, nil, nil, "")
	if err != nil {
		return errors.Wrap(err, "unable to create Docker container")
	}

	defer func() {
		stopTimeout := 2
		cli.ContainerStop(context.Background(), resp.ID, container.StopOptions{Timeout: &stopTimeout})
		cli.ContainerRemove(context.Background(), resp.ID, types.ContainerRemoveOptions{Force: true})
	}()

	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return errors.Wrap(err, "unable to start Docker container")
	}

	waitCh, errCh := cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return errors.Wrap(err, "error awaiting Docker container")
	case wait := <-waitCh:
		if wait.StatusCode != 0 {
			return fmt.Errorf("report: pandoc container exited with status %d", wait.StatusCode)
		}
	}

	return nil
}
