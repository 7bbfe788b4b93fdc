package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onestopradio/stationctl/internal/pipeline"
)

// projectDir resolves the optional positional argument to an absolute project
// directory, defaulting to the current working directory.
func projectDir(args []string) (string, error) {
	if len(args) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return wd, nil
	}

	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", args[0])
	}
	return abs, nil
}

// stageLabel renders a pipeline stage name for progress output.
func stageLabel(stage string) string {
	label := strings.ReplaceAll(stage, "-", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

// printProgress is the pipeline callback behind `up`: one line per stage.
func printProgress(event pipeline.Event) {
	switch event.Status {
	case "started":
		fmt.Printf("%s... ", stageLabel(event.Stage))
	case "completed":
		fmt.Printf("OK (%s)\n", roundDuration(event.Duration))
	case "warning":
		fmt.Printf("WARN: %v\n", event.Error)
	case "failed":
		fmt.Println("FAILED")
	}
}

func roundDuration(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

// renderSummary prints the post-run report: stage table plus warning list.
func renderSummary(report *pipeline.Report) {
	fmt.Println()
	for _, s := range report.Stages {
		fmt.Printf("  %-15s %-10s %s\n", s.Stage, s.Status, roundDuration(s.Duration))
	}

	if len(report.Warnings) > 0 {
		fmt.Printf("\nCompleted with %d warning(s):\n", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("  - %s: %v\n", w.Stage, w.Err)
		}
	}
}
