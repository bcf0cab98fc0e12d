package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/generate"
	"github.com/Cobb-ukr/ai-test-agent/llm"
	_ "github.com/Cobb-ukr/ai-test-agent/llm/groq"
	"github.com/Cobb-ukr/ai-test-agent/report"
	"github.com/Cobb-ukr/ai-test-agent/sandbox"
	_ "github.com/Cobb-ukr/ai-test-agent/sandbox/docker"
	_ "github.com/Cobb-ukr/ai-test-agent/sandbox/local"
)

// cli is the one-shot command: generate tests for a source file, run them
// locally and print the verdict, without any server or database.
var cli struct {
	File     string        `arg:"" help:"Source file to generate tests for." type:"existingfile"`
	Language string        `short:"l" default:"python" help:"Language of the source file."`
	Function string        `short:"f" required:"" help:"Function the tests should target."`
	Model    string        `short:"m" help:"Override the generator model."`
	Runner   string        `default:"local" help:"Sandbox runner to execute the tests with."`
	Timeout  time.Duration `default:"5m" help:"Bound for the whole run."`
	Report   string        `help:"Also render a PDF report into this directory." placeholder:"DIR"`
	Quiet    bool          `short:"q" help:"Suppress informational output."`
}

func main() {
	kongCtx := kong.Parse(&cli,
		kong.Name("ai-test-agent"),
		kong.Description("Generate unit tests for a source file with an LLM and execute them in a sandbox."),
		kong.UsageOnError(),
	)

	if cli.Quiet {
		log.SetLevel(log.WarnLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx.FatalIfErrorf(run(ctx))
}

func run(ctx context.Context) error {
	source, err := os.ReadFile(cli.File)
	if err != nil {
		return err
	}

	if _, err := sandbox.Language(cli.Language); err != nil {
		return err
	}

	generatorOptions := map[string]interface{}{}
	if cli.Model != "" {
		generatorOptions["model"] = cli.Model
	}
	generator, err := llm.Open(database.RegistrableComponentConfig{
		Type:    "groq",
		Options: generatorOptions,
	})
	if err != nil {
		return err
	}

	runner, err := sandbox.Open(database.RegistrableComponentConfig{Type: cli.Runner})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"file": cli.File, "function": cli.Function}).Info("generating tests")

	tests, result, summary, err := generate.Execute(ctx, generator, runner, generate.Input{
		Language: cli.Language,
		Function: cli.Function,
		Source:   string(source),
		Timeout:  cli.Timeout,
		OnTestsGenerated: func(string) {
			log.Info("executing generated tests")
		},
	})
	if err != nil {
		return err
	}

	if !cli.Quiet {
		fmt.Println(tests)
		fmt.Println(string(result.Stdout))
		if len(result.Stderr) > 0 {
			fmt.Fprintln(os.Stderr, string(result.Stderr))
		}
	}

	if summary != "" {
		fmt.Println(summary)
	}

	if result.ExitCode == 0 {
		fmt.Printf("%s All generated tests passed\n", color.GreenString("Success!"))
	} else {
		fmt.Printf("%s Generated tests failed with exit code %d\n", color.RedString("FAIL:"), result.ExitCode)
	}

	if cli.Report != "" {
		reports, err := report.NewService(report.Config{Dir: cli.Report})
		if err != nil {
			return err
		}

		run := database.Run{
			Status:         database.PassedStatus,
			GeneratedTests: tests,
			Output:         string(result.Stdout),
			Summary:        summary,
			ExitCode:       result.ExitCode,
		}
		if result.ExitCode != 0 {
			run.Status = database.FailedStatus
		}

		artifact, err := reports.Generate(database.Submission{
			Language: cli.Language,
			Function: cli.Function,
			Source:   string(source),
		}, run)
		if err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", artifact.Path)
	}

	return nil
}
