// Package main provides the Promptea CLI
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/app/usecases"
	"github.com/sandeepseesa/promptea/internal/infrastructure/config"
	"github.com/sandeepseesa/promptea/internal/infrastructure/logging"
	"github.com/sandeepseesa/promptea/pkg/promptea"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage:
  promptea version
  promptea palette
  promptea run -query TEXT [-model llama3|gemini|serpapi] [-doc NAME] [-upload PATH] [-backend URL] [-json]
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "Promptea %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	case "palette":
		printPalette(stdout)
	case "run":
		err = runWorkflow(ctx, args[1:], stdout, stderr)
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		fmt.Fprint(stderr, usage)
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

func printPalette(w io.Writer) {
	for _, item := range usecases.Palette() {
		fmt.Fprintf(w, "%-16s %s\n", item.Type, item.Label)
	}
}

func runWorkflow(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	query := fs.String("query", "", "question to ask")
	model := fs.String("model", "", "llama3, gemini or serpapi")
	doc := fs.String("doc", "", "name of a document the backend already indexed")
	upload := fs.String("upload", "", "PDF or DOCX file to upload before asking")
	backendURL := fs.String("backend", cfg.Backend.URL, "inference backend URL")
	timeout := fs.Duration("timeout", cfg.Backend.Timeout, "backend request timeout")
	asJSON := fs.Bool("json", false, "print the run result as JSON")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if strings.TrimSpace(*query) == "" {
		return fmt.Errorf("%w: -query is required", errUsage)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rt := promptea.NewHTTPRuntime(*backendURL, promptea.Options{
		Logger:         logger.With(zap.String("component", "cli")),
		RequestTimeout: *timeout,
	})
	wf, err := rt.NewWorkflow(ctx, "cli")
	if err != nil {
		return err
	}

	if *upload != "" {
		if err := uploadFile(ctx, wf, *upload); err != nil {
			return err
		}
	} else if *doc != "" {
		if err := wf.UseDocument(*doc); err != nil {
			return err
		}
	}
	if *model != "" {
		if err := wf.SelectModel(*model); err != nil {
			return err
		}
	}
	if err := wf.SetQuery(*query); err != nil {
		return err
	}

	start := time.Now()
	res, err := wf.Run(ctx)
	if err != nil {
		return err
	}
	logger.Debug("run complete", zap.Duration("elapsed", time.Since(start)))

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(stdout, res)
	if res.Failed {
		return errors.New("the backend answered with an error")
	}
	return nil
}

func uploadFile(ctx context.Context, wf *promptea.Workflow, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return wf.Upload(ctx, path, f)
}

func printResult(w io.Writer, res *promptea.RunResult) {
	for _, m := range res.Messages {
		if m.Sender == promptea.SenderUser {
			fmt.Fprintf(w, "> %s\n", m.Text)
			continue
		}
		fmt.Fprintf(w, "[%s]\n", m.ModelUsed)
		if len(m.Results) > 0 {
			for i, r := range m.Results {
				fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, r.Title, r.Link)
				if r.Snippet != "" {
					fmt.Fprintf(w, "   %s\n", r.Snippet)
				}
			}
			continue
		}
		fmt.Fprintln(w, m.Text)
	}
}
