package transfer

import (
	"bytes"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/resumable-download/internal/adapter/filesystem"
	"github.com/vertextoedge/resumable-download/internal/adapter/httpclient"
	"github.com/vertextoedge/resumable-download/internal/domain"
)

// stepClock advances by step on every call, so every read closes a window
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{t: time.Unix(1_700_000_000, 0), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testContent(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	return data
}

// rangeServer serves content with Range support and records the Range
// headers it received
type rangeServer struct {
	*httptest.Server
	mu     sync.Mutex
	ranges []string
}

func newRangeServer(t *testing.T, content []byte) *rangeServer {
	t.Helper()
	rs := &rangeServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.ranges = append(rs.ranges, r.Header.Get("Range"))
		rs.mu.Unlock()
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(content))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *rangeServer) Ranges() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.ranges...)
}

// stallServer sends prefix, then waits for release before sending rest.
// Range requests with a non-zero offset are served in full right away.
type stallServer struct {
	*httptest.Server
	release     chan struct{}
	releaseOnce sync.Once
}

func newStallServer(t *testing.T, content []byte, prefix int) *stallServer {
	t.Helper()
	ss := &stallServer{release: make(chan struct{})}
	ss.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rng := r.Header.Get("Range"); rng != "" && rng != "bytes=0-" {
			http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(content))
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content[:prefix])
		w.(http.Flusher).Flush()

		select {
		case <-ss.release:
		case <-r.Context().Done():
			return
		case <-time.After(10 * time.Second):
			return
		}
		_, _ = w.Write(content[prefix:])
	}))
	t.Cleanup(func() {
		ss.Release()
		ss.Close()
	})
	return ss
}

func (ss *stallServer) Release() {
	ss.releaseOnce.Do(func() { close(ss.release) })
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *filesystem.Manager) {
	t.Helper()
	store := filesystem.NewManager()
	client := httpclient.NewClient(nil, nil)
	t.Cleanup(client.CloseIdleConnections)
	e := NewEngine(cfg, client, store, nil)
	e.SetClock(newStepClock(2 * time.Second).Now)
	return e, store
}

func writeTemp(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+filesystem.DefaultTempSuffix), data, 0644))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// recorder is a Listener that keeps every event in order
type recorder struct {
	mu      sync.Mutex
	events  []string
	samples []domain.ProgressSample
	path    string
	err     error
	onFirst func()
	first   sync.Once
}

func (r *recorder) OnUpdate(sample domain.ProgressSample) {
	r.mu.Lock()
	r.events = append(r.events, "update")
	r.samples = append(r.samples, sample)
	r.mu.Unlock()
	if r.onFirst != nil {
		r.first.Do(r.onFirst)
	}
}

func (r *recorder) OnSuccess(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "success")
	r.path = path
}

func (r *recorder) OnFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "failure")
	r.err = err
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Samples() []domain.ProgressSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ProgressSample(nil), r.samples...)
}

// memoryHistory is an in-memory AttemptRepository
type memoryHistory struct {
	mu       sync.Mutex
	attempts []*domain.Attempt
	saveErr  error
}

func (m *memoryHistory) SaveAttempt(a *domain.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memoryHistory) GetAttempt(id uuid.UUID) (*domain.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryHistory) ListRecentAttempts(limit int) ([]*domain.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Attempt
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.attempts[i])
	}
	return out, nil
}

func (m *memoryHistory) ListAttemptsForFile(destinationDir, fileName string) ([]*domain.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Attempt
	for i := len(m.attempts) - 1; i >= 0; i-- {
		if a := m.attempts[i]; a.DestinationDir == destinationDir && a.FileName == fileName {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryHistory) CleanupOldAttempts(time.Duration) (int, error) { return 0, nil }
func (m *memoryHistory) Close() error                                  { return nil }

func (m *memoryHistory) All() []*domain.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Attempt(nil), m.attempts...)
}
