// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/ingestor"
	"github.com/poiesic/ingestor/config"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/progress"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ingestor",
		Usage: "Ingest documents into a vector store for retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"INGESTOR_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before configuration",
				Value: ".env",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest-file",
				Usage:     "Ingest a single PDF file (prompts for the path when omitted)",
				ArgsUsage: "[path]",
				Action:    ingestFileCommand,
			},
			{
				Name:      "ingest-folder",
				Usage:     "Ingest every matching file under a folder",
				ArgsUsage: "<folder>",
				Action:    ingestFolderCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print progress to stderr",
					},
				},
			},
			{
				Name:      "ingest-location",
				Usage:     "Ingest documents from a file:// or s3:// location",
				ArgsUsage: "<url>",
				Action:    ingestLocationCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "recursive",
						Aliases: []string{"r"},
						Usage:   "Descend into nested folders or key prefixes",
						Value:   true,
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print progress to stderr",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Find chunks similar to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results (defaults to search.max_hits)",
					},
				},
			},
			{
				Name:   "collections",
				Usage:  "List vector store collections",
				Action: collectionsCommand,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration as YAML",
				Action: configCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openIngestor(c *cli.Context, opts ...ingestor.Option) (*ingestor.Ingestor, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]ingestor.Option{ingestor.WithLogger(slog.Default())}, opts...)
	ing, err := ingestor.Open(c.Context, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return ing, cfg, nil
}

// progressOption returns a progress option when --progress is set.
func progressOption(c *cli.Context) []ingestor.Option {
	if !c.Bool("progress") {
		return nil
	}
	return []ingestor.Option{ingestor.WithProgress(progress.NewTracker(c.App.ErrWriter, 1))}
}

func ingestFileCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		var err error
		path, err = promptPath(c.App.Reader, c.App.Writer)
		if err != nil {
			return err
		}
	}
	return runCommand(c, core.IngestSingleFile{Path: path}, nil)
}

func ingestFolderCommand(c *cli.Context) error {
	folder := c.Args().First()
	if folder == "" {
		return fmt.Errorf("folder argument is required")
	}
	return runCommand(c, core.IngestFolder{FolderPath: folder}, progressOption(c))
}

func ingestLocationCommand(c *cli.Context) error {
	url := c.Args().First()
	if url == "" {
		return fmt.Errorf("url argument is required")
	}
	cmd := core.IngestFromLocation{URL: url, Recursive: c.Bool("recursive")}
	return runCommand(c, cmd, progressOption(c))
}

// runCommand executes cmd and prints the outcome as a status document.
// Failures are printed in the same shape and also returned.
func runCommand(c *cli.Context, cmd core.Command, opts []ingestor.Option) error {
	ing, _, err := openIngestor(c, opts...)
	if err != nil {
		return err
	}
	defer ing.Close()

	result, err := ing.Handle(c.Context, cmd)
	if err != nil {
		if writeErr := writeJSON(c.App.Writer, errorResponse(err)); writeErr != nil {
			return writeErr
		}
		return err
	}
	return writeJSON(c.App.Writer, successResponse(cmd, result))
}

func successResponse(cmd core.Command, result *core.Result) map[string]any {
	resp := map[string]any{"status": "success"}
	switch c := cmd.(type) {
	case core.IngestSingleFile:
		resp["filename"] = c.Path
		resp["chunks"] = len(result.Chunks)
		resp["unchanged"] = result.Unchanged > 0
	default:
		resp["num_files"] = result.Count
		resp["unchanged"] = result.Unchanged
	}
	return resp
}

func errorResponse(err error) map[string]any {
	return map[string]any{"status": "error", "message": err.Error()}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func promptPath(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprint(w, "Enter the path of the PDF file: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	path := strings.TrimSpace(line)
	if path == "" {
		return "", fmt.Errorf("no file path given")
	}
	return path, nil
}

func serveCommand(c *cli.Context) error {
	ing, cfg, err := openIngestor(c)
	if err != nil {
		return err
	}
	defer ing.Close()

	gin.SetMode(gin.ReleaseMode)
	srv, err := ing.NewServer()
	if err != nil {
		return err
	}

	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, addr)
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query argument is required")
	}

	ing, cfg, err := openIngestor(c)
	if err != nil {
		return err
	}
	defer ing.Close()

	limit := c.Int("limit")
	if limit <= 0 {
		limit = cfg.Search.MaxHits
	}

	results, err := ing.Searcher().FindSimilar(c.Context, query, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No results found.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(c.App.Writer, "%d. [%.3f] %s #%d\n   %s\n",
			i+1, r.Score, r.Chunk.Source, r.Chunk.Index, oneLine(r.Chunk.Text, 200))
	}
	return nil
}

func collectionsCommand(c *cli.Context) error {
	ing, _, err := openIngestor(c)
	if err != nil {
		return err
	}
	defer ing.Close()

	names, err := ing.VectorStore().ListCollections(c.Context)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func oneLine(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
