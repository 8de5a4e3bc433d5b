package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/resumable-download/internal/adapter/filesystem"
	"github.com/vertextoedge/resumable-download/internal/adapter/httpclient"
	"github.com/vertextoedge/resumable-download/internal/adapter/sqlite"
	"github.com/vertextoedge/resumable-download/internal/config"
	"github.com/vertextoedge/resumable-download/internal/domain"
	"github.com/vertextoedge/resumable-download/internal/logger"
	"github.com/vertextoedge/resumable-download/internal/port"
	"github.com/vertextoedge/resumable-download/internal/service/maintenance"
	"github.com/vertextoedge/resumable-download/internal/service/transfer"
)

const version = "0.1.0"

// Exit codes of the get command
const (
	exitOK     = 0
	exitFailed = 1
	exitPaused = 2
)

const usage = `usage: rdl [-config path] <command> [args]

commands:
  get [-dir d] [-name n] [-restart] <url>
                                 download url, resuming a previous attempt
  size <url>                     print the remote size
  history [-limit n]             list recent attempts
  history -file n [-dir d]       list the attempts for one file
  history -id <attempt id>       show one attempt
  clean [-watch]                 remove old temp files and history
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("rdl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := flags.String("config", "", "Path to configuration file")
	if err := flags.Parse(args); err != nil {
		return exitFailed
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return exitFailed
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailed
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitFailed
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Debug("starting rdl",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	app := &app{
		cfg:       cfg,
		logger:    zapLogger,
		stdout:    stdout,
		stderr:    stderr,
		interrupt: interruptContext,
	}

	command, rest := flags.Arg(0), flags.Args()[1:]
	switch command {
	case "get":
		return app.get(rest)
	case "size":
		return app.size(rest)
	case "history":
		return app.history(rest)
	case "clean":
		return app.clean(rest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		flags.Usage()
		return exitFailed
	}
}

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer

	// interrupt derives the context that Ctrl+C cancels
	interrupt func(context.Context) (context.Context, context.CancelFunc)
}

// interruptContext returns a context cancelled by the first SIGINT or
// SIGTERM. Signal handling is then released, so a second Ctrl+C terminates
// the process the default way.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

func (a *app) newClient() *httpclient.Client {
	return httpclient.NewClient(&httpclient.ClientConfig{
		UserAgent:             a.cfg.HTTP.UserAgent,
		DialTimeout:           a.cfg.HTTP.GetDialTimeout(),
		ResponseHeaderTimeout: a.cfg.HTTP.GetResponseHeaderTimeout(),
		IdleConnTimeout:       a.cfg.HTTP.GetIdleConnTimeout(),
		SkipTLSVerify:         a.cfg.HTTP.SkipTLSVerify,
		BufferSizeKB:          a.cfg.Download.BufferSizeKB,
		Headers:               a.cfg.HTTP.Headers,
	}, a.logger)
}

// openHistory opens the attempt history. A failure only disables recording.
func (a *app) openHistory() (port.AttemptRepository, func()) {
	store, err := sqlite.Open(a.cfg.Database.Path)
	if err != nil {
		a.logger.Warn("attempt history unavailable",
			zap.Error(err),
			zap.String("path", a.cfg.Database.Path))
		return nil, func() {}
	}
	return store, func() { store.Close() }
}

func (a *app) get(args []string) int {
	flags := flag.NewFlagSet("get", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	dir := flags.String("dir", a.cfg.Download.Dir, "Destination directory")
	name := flags.String("name", "", "File name (default: derived from the URL)")
	restart := flags.Bool("restart", false, "Discard a partial file and start from zero")
	if err := flags.Parse(args); err != nil {
		return exitFailed
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(a.stderr, "get: exactly one url is required")
		return exitFailed
	}

	rawURL := flags.Arg(0)
	fileName := *name
	if fileName == "" {
		fileName = domain.FileNameFromURL(rawURL)
	}

	req, err := domain.NewRequest(rawURL, *dir, fileName)
	if err != nil {
		fmt.Fprintf(a.stderr, "get: %v\n", err)
		return exitFailed
	}

	store := filesystem.NewManagerWithSuffix(a.cfg.Download.TempSuffix)
	if *restart {
		tempPath := filepath.Join(req.DestinationDir, store.TempFileName(req.FileName))
		if err := store.DeleteTempFile(tempPath); err != nil {
			fmt.Fprintf(a.stderr, "get: %v\n", err)
			return exitFailed
		}
		a.logger.Info("discarded partial download", zap.String("path", tempPath))
	}

	history, closeHistory := a.openHistory()
	defer closeHistory()

	client := a.newClient()
	defer client.CloseIdleConnections()

	engine := transfer.NewEngine(transfer.Config{
		SampleInterval:    a.cfg.Download.GetSampleInterval(),
		BufferSize:        a.cfg.Download.GetBufferSize(),
		InactivityTimeout: a.cfg.Download.GetInactivityTimeout(),
	}, client, store, a.logger)

	bridge := transfer.NewBridge(engine, history, a.cfg.Download.ProgressBuffer, a.logger)

	// Ctrl+C pauses; the partial file is kept for the next run
	ctx, stop := a.interrupt(context.Background())
	defer stop()

	progress := newProgressPrinter(a.stdout, time.Now)
	handle := bridge.Start(ctx, req, progress)
	<-handle.Done()

	out, _ := handle.Wait(context.Background())
	progress.Finish()

	switch {
	case out.IsSuccess():
		fmt.Fprintf(a.stdout, "saved %s (%s)\n", out.Path, humanize.Bytes(uint64(out.TotalBytes())))
		return exitOK
	case out.IsCancelled():
		fmt.Fprintf(a.stdout, "paused at %s, run the same command again to resume\n",
			humanize.Bytes(uint64(out.TotalBytes())))
		return exitPaused
	default:
		fmt.Fprintf(a.stderr, "download failed: %v\n", out.Err)
		return exitFailed
	}
}

func (a *app) size(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "size: exactly one url is required")
		return exitFailed
	}

	client := a.newClient()
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.GetResponseHeaderTimeout())
	defer cancel()

	size := client.Size(ctx, args[0])
	if size < 0 {
		fmt.Fprintln(a.stdout, "unknown")
		return exitOK
	}
	fmt.Fprintf(a.stdout, "%d (%s)\n", size, humanize.Bytes(uint64(size)))
	return exitOK
}

func (a *app) history(args []string) int {
	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	limit := flags.Int("limit", 20, "Number of attempts to show")
	id := flags.String("id", "", "Show a single attempt")
	file := flags.String("file", "", "Show the attempts for one file name")
	dir := flags.String("dir", a.cfg.Download.Dir, "Destination directory of -file")
	if err := flags.Parse(args); err != nil {
		return exitFailed
	}

	var attemptID uuid.UUID
	if *id != "" {
		parsed, err := uuid.Parse(*id)
		if err != nil {
			fmt.Fprintf(a.stderr, "history: invalid attempt id: %v\n", err)
			return exitFailed
		}
		attemptID = parsed
	}

	store, err := sqlite.Open(a.cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(a.stderr, "history: %v\n", err)
		return exitFailed
	}
	defer store.Close()

	now := time.Now()
	switch {
	case *id != "":
		att, err := store.GetAttempt(attemptID)
		if err != nil {
			fmt.Fprintf(a.stderr, "history: %v\n", err)
			return exitFailed
		}
		printAttempt(a.stdout, att, now)
		return exitOK

	case *file != "":
		attempts, err := store.ListAttemptsForFile(*dir, *file)
		if err != nil {
			fmt.Fprintf(a.stderr, "history: %v\n", err)
			return exitFailed
		}
		printAttempts(a.stdout, attempts, now)
		return exitOK
	}

	attempts, err := store.ListRecentAttempts(*limit)
	if err != nil {
		fmt.Fprintf(a.stderr, "history: %v\n", err)
		return exitFailed
	}
	printAttempts(a.stdout, attempts, now)

	stats, err := store.GetStats()
	if err != nil {
		a.logger.Warn("failed to read history stats", zap.Error(err))
		return exitOK
	}
	if len(attempts) > 0 {
		fmt.Fprintf(a.stdout, "\ntotal: %d success, %d failure, %d cancelled\n",
			stats[string(domain.OutcomeSuccess)],
			stats[string(domain.OutcomeFailure)],
			stats[string(domain.OutcomeCancelled)])
	}
	return exitOK
}

func (a *app) clean(args []string) int {
	flags := flag.NewFlagSet("clean", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	watch := flags.Bool("watch", false, "Keep running and clean every maintenance.cleanup_interval")
	if err := flags.Parse(args); err != nil {
		return exitFailed
	}
	if flags.NArg() != 0 {
		fmt.Fprintln(a.stderr, "clean: no arguments expected")
		return exitFailed
	}

	history, closeHistory := a.openHistory()
	defer closeHistory()

	store := filesystem.NewManagerWithSuffix(a.cfg.Download.TempSuffix)
	a.logger.Debug("cleaning download directory",
		zap.String("root", a.cfg.Download.Dir),
		zap.String("temp_suffix", store.TempSuffix()))

	svc := maintenance.New(&maintenance.Config{
		Root:            a.cfg.Download.Dir,
		CleanupInterval: a.cfg.Maintenance.GetCleanupInterval(),
		TempFileMaxAge:  a.cfg.Maintenance.GetTempFileMaxAge(),
		HistoryMaxAge:   a.cfg.Maintenance.GetHistoryMaxAge(),
	}, store, history, a.logger)

	report, err := svc.RunOnce()
	fmt.Fprintf(a.stdout, "removed %d temp files and %d history records\n",
		report.TempFilesDeleted, report.AttemptsDeleted)
	if err != nil {
		fmt.Fprintf(a.stderr, "clean: %v\n", err)
		return exitFailed
	}
	if !*watch {
		return exitOK
	}

	ctx, stop := a.interrupt(context.Background())
	defer stop()

	fmt.Fprintf(a.stdout, "cleaning every %s, press Ctrl+C to stop\n",
		a.cfg.Maintenance.GetCleanupInterval())

	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	<-ctx.Done()
	svc.Stop()
	if err := <-done; err != nil {
		fmt.Fprintf(a.stderr, "clean: %v\n", err)
		return exitFailed
	}
	return exitOK
}

func printAttempts(w io.Writer, attempts []*domain.Attempt, now time.Time) {
	if len(attempts) == 0 {
		fmt.Fprintln(w, "no attempts recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFINISHED\tOUTCOME\tSIZE\tFILE\tERROR")
	for _, att := range attempts {
		errText := att.LastError
		if att.Kind == domain.OutcomeCancelled {
			errText = ""
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			att.ID,
			humanize.RelTime(att.FinishedAt, now, "ago", "from now"),
			att.Kind,
			humanize.Bytes(uint64(att.StartBytes+att.BytesWritten)),
			att.FileName,
			errText,
		)
	}
	tw.Flush()
}

// printAttempt writes the details of one attempt
func printAttempt(w io.Writer, att *domain.Attempt, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", att.ID)
	fmt.Fprintf(tw, "url:\t%s\n", att.URL)
	fmt.Fprintf(tw, "file:\t%s\n", filepath.Join(att.DestinationDir, att.FileName))
	fmt.Fprintf(tw, "outcome:\t%s\n", att.Kind)
	if att.StatusCode != 0 {
		fmt.Fprintf(tw, "status:\t%d\n", att.StatusCode)
	}
	fmt.Fprintf(tw, "resumed at:\t%s\n", humanize.Bytes(uint64(att.StartBytes)))
	fmt.Fprintf(tw, "received:\t%s\n", humanize.Bytes(uint64(att.BytesWritten)))
	fmt.Fprintf(tw, "finished:\t%s (%s)\n",
		humanize.RelTime(att.FinishedAt, now, "ago", "from now"),
		att.Duration().Round(time.Millisecond))
	if att.LastError != "" && att.Kind != domain.OutcomeCancelled {
		fmt.Fprintf(tw, "error:\t%s\n", att.LastError)
	}
	tw.Flush()
}
