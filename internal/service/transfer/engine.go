package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/resumable-download/internal/domain"
	"github.com/vertextoedge/resumable-download/internal/port"
	"github.com/vertextoedge/resumable-download/internal/util/ratelimiter"
)

// Config holds the transfer engine configuration
type Config struct {
	// SampleInterval is the minimum time between two progress samples
	SampleInterval time.Duration

	// BufferSize is the size of the copy buffer in bytes
	BufferSize int

	// InactivityTimeout aborts an attempt when no data arrived for this
	// long. Zero disables the watchdog.
	InactivityTimeout time.Duration
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		SampleInterval: time.Second,
		BufferSize:     32 * 1024,
	}
}

// Engine performs single download attempts: it resumes from the temp file,
// streams the response into it and renames it once the body was fully
// received.
type Engine struct {
	config  Config
	fetcher port.RangeFetcher
	store   port.TransferStore
	logger  *zap.Logger
	clock   ratelimiter.Clock
}

// NewEngine creates a new transfer engine
func NewEngine(cfg Config, fetcher port.RangeFetcher, store port.TransferStore, logger *zap.Logger) *Engine {
	defaults := DefaultConfig()
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = defaults.SampleInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		config:  cfg,
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		clock:   time.Now,
	}
}

// SetClock replaces the time source used for progress sampling
func (e *Engine) SetClock(clock ratelimiter.Clock) {
	if clock == nil {
		clock = time.Now
	}
	e.clock = clock
}

// Size returns the remote size of url, or -1 when unknown
func (e *Engine) Size(ctx context.Context, url string) int64 {
	return e.fetcher.Size(ctx, url)
}

// Attempt runs one download attempt and returns its outcome.
//
// The attempt stops cooperatively when cancelled is set: the bytes already
// written stay in the temp file and the outcome is Cancelled. Cancelling ctx
// aborts the request itself and yields an ErrIO failure.
func (e *Engine) Attempt(
	ctx context.Context,
	req domain.Request,
	cancelled *atomic.Bool,
	progress ProgressListener,
) domain.Outcome {
	if cancelled == nil {
		cancelled = new(atomic.Bool)
	}

	id := uuid.New()
	log := e.logger.With(
		zap.String("attempt_id", id.String()),
		zap.String("url", req.URL),
		zap.String("file", req.FileName),
	)

	out := e.attempt(ctx, log, req, cancelled, progress)
	out.AttemptID = id

	switch out.Kind {
	case domain.OutcomeSuccess:
		log.Info("download completed",
			zap.String("path", out.Path),
			zap.Int64("bytes", out.TotalBytes()))
	case domain.OutcomeCancelled:
		log.Info("download paused",
			zap.Int64("bytes", out.TotalBytes()))
	default:
		log.Warn("download failed",
			zap.Int64("bytes", out.TotalBytes()),
			zap.NamedError("kind", domain.KindOf(out.Err)),
			zap.Error(out.Err))
	}

	return out
}

func (e *Engine) attempt(
	ctx context.Context,
	log *zap.Logger,
	req domain.Request,
	cancelled *atomic.Bool,
	progress ProgressListener,
) domain.Outcome {
	if err := req.Validate(); err != nil {
		return domain.Failed(err, 0, 0)
	}

	tempName := e.store.TempFileName(req.FileName)
	tempPath := filepath.Join(req.DestinationDir, tempName)
	finalPath := req.FinalPath()

	startBytes, err := e.store.ComputeResumeOffset(req.DestinationDir, tempName)
	if err != nil {
		return domain.Failed(domain.NewIOError("compute resume offset", err), 0, 0)
	}

	if cancelled.Load() {
		return domain.Cancelled(startBytes, 0)
	}

	if startBytes > 0 {
		log.Info("resuming download", zap.Int64("from_byte", startBytes))
	} else {
		log.Info("starting download")
	}

	reqCtx, wd := newWatchdog(ctx, e.config.InactivityTimeout)
	defer wd.Stop()

	resp, err := e.fetcher.GetFrom(reqCtx, req.URL, startBytes)
	if err != nil {
		return domain.Failed(domain.NewIOError("request", stallCause(reqCtx, err)), startBytes, 0)
	}
	defer resp.Body.Close()

	// 416 with "bytes */<startBytes>": nothing left to fetch. This is the
	// retry after a failed rename, or an empty remote file.
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable &&
		alreadyComplete(resp.Header.Get("Content-Range"), startBytes) {
		log.Info("nothing left to receive, finalizing", zap.Int64("bytes", startBytes))
		return e.finalizeReceived(req, tempPath, finalPath, startBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Failed(domain.NewServerError("get", resp.StatusCode), startBytes, 0)
	}

	truncate := false
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		if err := checkPartialContent(resp.Header.Get("Content-Range"), startBytes); err != nil {
			return domain.Failed(domain.NewRangeError("get", resp.StatusCode, err), startBytes, 0)
		}
	case startBytes > 0:
		log.Warn("server ignored range request, restarting from zero",
			zap.Int("status", resp.StatusCode),
			zap.Int64("discarded_bytes", startBytes))
		startBytes = 0
		truncate = true
	}

	if err := e.store.EnsureDestinationDir(req.DestinationDir); err != nil {
		return domain.Failed(err, startBytes, 0)
	}

	e.checkDiskSpace(log, req.DestinationDir, resp.ContentLength)

	file, err := e.store.OpenTemp(tempPath, truncate)
	if err != nil {
		cancelled.Store(true)
		return domain.Failed(domain.NewIOError("open temp file", err), startBytes, 0)
	}

	limiter := ratelimiter.NewWithClock(e.config.SampleInterval, e.clock)
	stream := NewProgressStream(resp.Body, cancelled, startBytes, resp.ContentLength, progress, limiter)

	written, copyErr := e.copy(reqCtx, wd, file, stream)
	closeErr := file.Close()

	if copyErr != nil {
		cancelled.Store(true)
		return domain.Failed(copyErr, startBytes, written)
	}
	if closeErr != nil {
		cancelled.Store(true)
		return domain.Failed(domain.NewIOError("close temp file", closeErr), startBytes, written)
	}

	if stream.Interrupted() {
		return domain.Cancelled(startBytes, written)
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return domain.Failed(
			domain.NewIOError("read response body", fmt.Errorf("got %d of %d bytes: %w", written, resp.ContentLength, io.ErrUnexpectedEOF)),
			startBytes, written)
	}

	if err := e.store.Finalize(tempPath, finalPath); err != nil {
		return domain.Failed(err, startBytes, written)
	}

	return domain.Succeeded(finalPath, startBytes, written)
}

// finalizeReceived renames a temp file that already holds the whole remote
// file, creating it first when the remote file is empty.
func (e *Engine) finalizeReceived(req domain.Request, tempPath, finalPath string, size int64) domain.Outcome {
	if size == 0 {
		if err := e.store.EnsureDestinationDir(req.DestinationDir); err != nil {
			return domain.Failed(err, 0, 0)
		}
		file, err := e.store.OpenTemp(tempPath, true)
		if err != nil {
			return domain.Failed(domain.NewIOError("open temp file", err), 0, 0)
		}
		if err := file.Close(); err != nil {
			return domain.Failed(domain.NewIOError("close temp file", err), 0, 0)
		}
	}
	if err := e.store.Finalize(tempPath, finalPath); err != nil {
		return domain.Failed(err, size, 0)
	}
	return domain.Succeeded(finalPath, size, 0)
}

// copy appends everything read from stream to dst. Nothing is written once
// the stream observed the cancellation flag.
func (e *Engine) copy(ctx context.Context, wd *watchdog, dst io.Writer, stream *ProgressStream) (int64, error) {
	buf := make([]byte, e.config.BufferSize)
	var written int64

	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			wd.Kick()
			m, werr := dst.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, domain.NewIOError("write temp file", werr)
			}
			if m != n {
				return written, domain.NewIOError("write temp file", io.ErrShortWrite)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, domain.NewIOError("read response body", stallCause(ctx, rerr))
		}
	}
}

func (e *Engine) checkDiskSpace(log *zap.Logger, dir string, remaining int64) {
	if remaining <= 0 {
		return
	}
	usage, err := e.store.GetDiskUsage(dir)
	if err != nil {
		log.Debug("failed to get disk usage", zap.Error(err))
		return
	}
	if uint64(remaining) > usage.Free {
		log.Warn("remaining download larger than free disk space",
			zap.Int64("remaining_bytes", remaining),
			zap.Uint64("free_bytes", usage.Free))
	}
}

// stallCause annotates err when the inactivity watchdog fired
func stallCause(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), os.ErrDeadlineExceeded) {
		return fmt.Errorf("no data received within inactivity timeout: %w", err)
	}
	return err
}
