package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/limbo/studytrack/internal/cli"
	"github.com/limbo/studytrack/pkg/cleanup"
	"github.com/limbo/studytrack/pkg/config"
)

func main() {
	level := slog.LevelWarn
	if os.Getenv("STUDYTRACK_DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.New()
	root := cli.NewRootCmd(cli.SettingsFromConfig(cfg), cli.Open)
	err := root.ExecuteContext(context.Background())
	cleanup.CleanUp()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
