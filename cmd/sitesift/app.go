package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nao1215/sitesift/internal/checkpoint"
	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/database"
	"github.com/nao1215/sitesift/internal/log"
	"github.com/nao1215/sitesift/internal/model"
	"github.com/nao1215/sitesift/internal/pipeline"
	"github.com/nao1215/sitesift/internal/report"
	"github.com/spf13/cobra"
)

// app bundles what every stage command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.CrawlDB
	out    io.Writer
	errOut io.Writer
}

// newApp builds the config, sets up logging and opens the crawl archive.
// validate checks the config for the command at hand.
func newApp(cmd *cobra.Command, args []string, validate func(*config.Config) error) (*app, error) {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	a := &app{
		cfg:    cfg,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}
	if flagBool(cmd, "log-json") {
		a.logger = log.NewSecureJSONLogger(a.errOut, cfg.Verbose)
	} else {
		a.logger = log.NewSecureLogger(a.errOut, cfg.Verbose)
	}
	slog.SetDefault(a.logger)

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open crawl archive: %w", err)
		}
		a.db = db
		a.logger.Debug("crawl archive opened", "path", db.Path())
	}
	return a, nil
}

// Close releases the crawl archive.
func (a *app) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close crawl archive", "error", err)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, saving progress...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// executeStages runs steps over input and always writes the result and the
// run summary, including after a failure or an interrupt.
func (a *app) executeStages(ctx context.Context, runID string, seeds []model.Seed, input *model.CrawlResult, steps ...pipeline.Step) error {
	st := pipeline.NewState(runID, seeds, input)
	if len(seeds) == 0 {
		st.Run.SeedCount = st.Result.SeedCount()
	}

	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if a.db != nil {
		opts = append(opts, pipeline.WithRunStore(a.db))
	}
	p := pipeline.New(opts...)
	p.AddSteps(steps...)

	runErr := p.Execute(ctx, st)

	if err := a.writeResult(st.Result); err != nil {
		return errors.Join(runErr, err)
	}
	if err := a.writeSummary(st.Run); err != nil {
		a.logger.Warn("failed to write summary", "error", err)
	}

	if runErr != nil && st.Run.Status == model.RunInterrupted {
		return fmt.Errorf("interrupted: %w", runErr)
	}
	return runErr
}

// writeResult writes the crawl result JSON to the output file, or to
// stdout when none is set.
func (a *app) writeResult(result *model.CrawlResult) error {
	path := a.cfg.OutputPath
	if path == "" || path == "-" {
		_, err := report.NewJSONWriter(a.out, report.WithPrettyPrint()).WriteResult(result)
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := checkpoint.WriteAtomic(path, result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	a.logger.Info("result written", "path", path, "seeds", result.SeedCount(), "pages", result.Len())
	return nil
}

// readInput loads the crawl result a stage works on: the pages of an
// archived run (--from-run), stdin ("-") or a JSON file.
func (a *app) readInput(ctx context.Context, cmd *cobra.Command) (*model.CrawlResult, error) {
	if runID := flagString(cmd, "from-run"); runID != "" {
		if a.db == nil {
			return nil, errors.New("--from-run needs the crawl archive (drop --no-db)")
		}
		run, err := a.db.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return a.db.ResultForRun(ctx, runID)
	}

	switch a.cfg.InputPath {
	case "":
		return nil, errors.New("no input: use --input or --from-run")
	case "-":
		result := model.NewCrawlResult()
		if err := json.NewDecoder(cmd.InOrStdin()).Decode(result); err != nil {
			return nil, fmt.Errorf("failed to parse input: %w", err)
		}
		return result, nil
	}

	if _, err := os.Stat(a.cfg.InputPath); err != nil {
		return nil, fmt.Errorf("input file not found: %s", a.cfg.InputPath)
	}
	result, err := checkpoint.Read(a.cfg.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return result, nil
}

// summaryWriter picks the summary format: --json, --markdown, a .md report
// file, or plain text.
func (a *app) summaryWriter(w io.Writer, simple []report.SimpleWriterOption, md []report.MarkdownWriterOption) report.Writer {
	switch {
	case a.cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case a.cfg.MarkdownReport, strings.EqualFold(filepath.Ext(a.cfg.ReportFile), ".md"):
		return report.NewMarkdownWriter(w, md...)
	default:
		simple = append(simple, report.WithVerbose(a.cfg.Verbose))
		return report.NewSimpleWriter(w, simple...)
	}
}

// openReport returns the summary destination and a function closing it.
func (a *app) openReport() (io.Writer, func() error, error) {
	if a.cfg.ReportFile == "" {
		return a.errOut, func() error { return nil }, nil
	}
	if err := ensureDir(a.cfg.ReportFile); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(a.cfg.ReportFile) //nolint:gosec // operator-supplied report path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, f.Close, nil
}

// writeSummary writes the run summary to the report file or stderr.
func (a *app) writeSummary(run *model.Run) error {
	w, closeFn, err := a.openReport()
	if err != nil {
		return err
	}
	_, werr := a.summaryWriter(w, nil, nil).Write(run)
	return errors.Join(werr, closeFn())
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
