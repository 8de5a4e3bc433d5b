package transfer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/resumable-download/internal/domain"
	"github.com/vertextoedge/resumable-download/internal/port"
)

// DefaultProgressBuffer is the number of progress samples queued for the
// listener before new samples are dropped
const DefaultProgressBuffer = 16

// Bridge runs attempts in the background and delivers their events to a
// Listener from a single goroutine, so a listener never sees two callbacks
// at the same time and the terminal callback always comes last.
type Bridge struct {
	engine         *Engine
	history        port.AttemptRepository
	logger         *zap.Logger
	progressBuffer int
	now            func() time.Time
}

// NewBridge creates a new bridge. history may be nil.
func NewBridge(engine *Engine, history port.AttemptRepository, progressBuffer int, logger *zap.Logger) *Bridge {
	if progressBuffer <= 0 {
		progressBuffer = DefaultProgressBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		engine:         engine,
		history:        history,
		logger:         logger,
		progressBuffer: progressBuffer,
		now:            time.Now,
	}
}

// Handle controls a started download
type Handle struct {
	cancelled atomic.Bool
	done      chan struct{}

	mu      sync.Mutex
	outcome domain.Outcome
}

// Cancel asks the attempt to pause at its next read. Calling it more than
// once, or after the attempt finished, has no effect.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

// Done is closed after the terminal callback returned
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the attempt finished or ctx is done
func (h *Handle) Wait(ctx context.Context) (domain.Outcome, error) {
	select {
	case <-h.done:
		return h.result(), nil
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

func (h *Handle) result() domain.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// Start launches an attempt for req and returns immediately. Cancelling ctx
// has the same effect as Handle.Cancel.
func (b *Bridge) Start(ctx context.Context, req domain.Request, listener Listener) *Handle {
	if listener == nil {
		listener = NopListener{}
	}

	h := &Handle{done: make(chan struct{})}
	updates := make(chan domain.ProgressSample, b.progressBuffer)
	delivered := make(chan struct{})

	go func() {
		defer close(delivered)
		for sample := range updates {
			listener.OnUpdate(sample)
		}
	}()

	stop := context.AfterFunc(ctx, h.Cancel)

	go func() {
		defer close(h.done)
		defer stop()

		startedAt := b.now()
		out := b.engine.Attempt(context.WithoutCancel(ctx), req, &h.cancelled, &forwarder{
			updates: updates,
			logger:  b.logger,
		})
		close(updates)
		<-delivered

		b.record(req, out, startedAt)

		h.mu.Lock()
		h.outcome = out
		h.mu.Unlock()

		if out.IsSuccess() {
			listener.OnSuccess(out.Path)
		} else {
			listener.OnFailure(out.Err)
		}
	}()

	return h
}

// Download runs an attempt and waits for it. It returns the final path on
// success. Cancelling ctx pauses the attempt; the returned error then
// matches domain.ErrCancelled.
func (b *Bridge) Download(ctx context.Context, req domain.Request, listener Listener) (string, error) {
	h := b.Start(ctx, req, listener)
	<-h.Done()

	out := h.result()
	if !out.IsSuccess() {
		return "", out.Err
	}
	return out.Path, nil
}

// Size returns the remote size of url, or -1 when unknown
func (b *Bridge) Size(ctx context.Context, url string) int64 {
	return b.engine.Size(ctx, url)
}

func (b *Bridge) record(req domain.Request, out domain.Outcome, startedAt time.Time) {
	if b.history == nil {
		return
	}
	attempt := domain.NewAttempt(req, out, startedAt, b.now())
	if err := b.history.SaveAttempt(attempt); err != nil {
		b.logger.Warn("failed to save attempt",
			zap.String("attempt_id", attempt.ID.String()),
			zap.Error(err))
	}
}

// forwarder hands samples to the delivery goroutine without blocking the
// transfer
type forwarder struct {
	updates chan<- domain.ProgressSample
	logger  *zap.Logger
	dropped int
}

func (f *forwarder) OnUpdate(sample domain.ProgressSample) {
	select {
	case f.updates <- sample:
	default:
		f.dropped++
		f.logger.Debug("progress sample dropped",
			zap.Int("dropped", f.dropped),
			zap.Int64("read_bytes", sample.ReadBytes))
	}
}
