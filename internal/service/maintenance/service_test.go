package maintenance

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/resumable-download/internal/domain"
	"github.com/vertextoedge/resumable-download/internal/port"
)

// mockHistory implements port.AttemptRepository for testing
type mockHistory struct {
	mu            sync.Mutex
	cleanupCount  int
	cleanupErr    error
	cleanupCalled int
	lastMaxAge    time.Duration
}

func (m *mockHistory) SaveAttempt(a *domain.Attempt) error { return nil }
func (m *mockHistory) GetAttempt(id uuid.UUID) (*domain.Attempt, error) {
	return nil, domain.ErrNotFound
}
func (m *mockHistory) ListRecentAttempts(limit int) ([]*domain.Attempt, error) { return nil, nil }
func (m *mockHistory) ListAttemptsForFile(dir, name string) ([]*domain.Attempt, error) {
	return nil, nil
}
func (m *mockHistory) CleanupOldAttempts(olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupCalled++
	m.lastMaxAge = olderThan
	return m.cleanupCount, m.cleanupErr
}
func (m *mockHistory) Close() error { return nil }

// mockStore implements port.TransferStore for testing
type mockStore struct {
	mu                   sync.Mutex
	cleanTempFilesCount  int
	cleanTempFilesErr    error
	cleanTempFilesCalled int
	lastRoot             string
}

func (m *mockStore) TempFileName(fileName string) string { return fileName + ".downloading" }
func (m *mockStore) ComputeResumeOffset(dir, tempName string) (int64, error) {
	return 0, nil
}
func (m *mockStore) EnsureDestinationDir(path string) error { return nil }
func (m *mockStore) OpenTemp(tempPath string, truncate bool) (io.WriteCloser, error) {
	return nil, errors.New("not implemented")
}
func (m *mockStore) Finalize(tempPath, finalPath string) error { return nil }
func (m *mockStore) DeleteTempFile(tempPath string) error { return nil }
func (m *mockStore) GetDiskUsage(path string) (*port.DiskUsage, error) { return nil, nil }
func (m *mockStore) CleanOldTempFiles(root string, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanTempFilesCalled++
	m.lastRoot = root
	return m.cleanTempFilesCount, m.cleanTempFilesErr
}

func TestService_New(t *testing.T) {
	logger := zap.NewNop()

	// Test with nil config (should use defaults)
	s := New(nil, &mockStore{}, &mockHistory{}, logger)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.config.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval = %v, want %v", s.config.CleanupInterval, time.Hour)
	}
	if s.config.TempFileMaxAge != 7*24*time.Hour {
		t.Errorf("TempFileMaxAge = %v, want %v", s.config.TempFileMaxAge, 7*24*time.Hour)
	}

	// Test with partial config
	s = New(&Config{Root: "/downloads", TempFileMaxAge: 6 * time.Hour}, &mockStore{}, nil, logger)
	if s.config.Root != "/downloads" {
		t.Errorf("Root = %q, want /downloads", s.config.Root)
	}
	if s.config.TempFileMaxAge != 6*time.Hour {
		t.Errorf("TempFileMaxAge = %v, want %v", s.config.TempFileMaxAge, 6*time.Hour)
	}
	if s.config.HistoryMaxAge != 30*24*time.Hour {
		t.Errorf("HistoryMaxAge = %v, want %v", s.config.HistoryMaxAge, 30*24*time.Hour)
	}
}

func TestService_RunOnce(t *testing.T) {
	store := &mockStore{cleanTempFilesCount: 2}
	history := &mockHistory{cleanupCount: 5}

	s := New(&Config{Root: "/downloads", HistoryMaxAge: time.Hour}, store, history, zap.NewNop())

	report, err := s.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.TempFilesDeleted != 2 {
		t.Errorf("TempFilesDeleted = %d, want 2", report.TempFilesDeleted)
	}
	if report.AttemptsDeleted != 5 {
		t.Errorf("AttemptsDeleted = %d, want 5", report.AttemptsDeleted)
	}
	if store.lastRoot != "/downloads" {
		t.Errorf("CleanOldTempFiles root = %q, want /downloads", store.lastRoot)
	}
	if history.lastMaxAge != time.Hour {
		t.Errorf("CleanupOldAttempts olderThan = %v, want %v", history.lastMaxAge, time.Hour)
	}
}

func TestService_RunOnce_Errors(t *testing.T) {
	tests := []struct {
		name        string
		storeErr    error
		historyErr  error
		wantTemp    int
		wantHistory int
	}{
		{"temp files fail", errors.New("walk failed"), nil, 0, 3},
		{"history fails", nil, errors.New("db locked"), 1, 0},
		{"both fail", errors.New("walk failed"), errors.New("db locked"), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{cleanTempFilesCount: 1, cleanTempFilesErr: tt.storeErr}
			if tt.storeErr != nil {
				store.cleanTempFilesCount = 0
			}
			history := &mockHistory{cleanupCount: 3, cleanupErr: tt.historyErr}

			s := New(nil, store, history, zap.NewNop())
			report, err := s.RunOnce()

			if err == nil {
				t.Fatal("RunOnce() expected error")
			}
			if tt.storeErr != nil && !errors.Is(err, tt.storeErr) {
				t.Errorf("error %v does not wrap %v", err, tt.storeErr)
			}
			if tt.historyErr != nil && !errors.Is(err, tt.historyErr) {
				t.Errorf("error %v does not wrap %v", err, tt.historyErr)
			}
			if store.cleanTempFilesCalled != 1 || history.cleanupCalled != 1 {
				t.Error("both cleanup steps must run")
			}
			if report.TempFilesDeleted != tt.wantTemp {
				t.Errorf("TempFilesDeleted = %d, want %d", report.TempFilesDeleted, tt.wantTemp)
			}
			if report.AttemptsDeleted != tt.wantHistory {
				t.Errorf("AttemptsDeleted = %d, want %d", report.AttemptsDeleted, tt.wantHistory)
			}
		})
	}
}

func TestService_RunOnce_NoHistory(t *testing.T) {
	s := New(nil, &mockStore{}, nil, zap.NewNop())

	report, err := s.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.AttemptsDeleted != 0 {
		t.Errorf("AttemptsDeleted = %d, want 0", report.AttemptsDeleted)
	}
}

func TestService_StartStop(t *testing.T) {
	store := &mockStore{}
	history := &mockHistory{}

	cfg := &Config{
		Root:            t.TempDir(),
		CleanupInterval: 10 * time.Millisecond,
	}
	s := New(cfg, store, history, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	// Start in goroutine
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	// Wait for maintenance to run at least once
	time.Sleep(50 * time.Millisecond)

	// Stop the service
	cancel()
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}

	store.mu.Lock()
	tempCalled := store.cleanTempFilesCalled
	store.mu.Unlock()

	history.mu.Lock()
	historyCalled := history.cleanupCalled
	history.mu.Unlock()

	if tempCalled == 0 {
		t.Error("CleanOldTempFiles was not called")
	}
	if historyCalled == 0 {
		t.Error("CleanupOldAttempts was not called")
	}
}

func TestService_DoubleStart(t *testing.T) {
	s := New(nil, &mockStore{}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		s.Start(ctx)
	}()
	time.Sleep(10 * time.Millisecond)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err == nil {
			t.Error("second Start() should fail while running")
		}
	case <-time.After(time.Second):
		t.Fatal("second Start() blocked")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval = %v, want %v", cfg.CleanupInterval, time.Hour)
	}
	if cfg.TempFileMaxAge != 7*24*time.Hour {
		t.Errorf("TempFileMaxAge = %v, want %v", cfg.TempFileMaxAge, 7*24*time.Hour)
	}
	if cfg.HistoryMaxAge != 30*24*time.Hour {
		t.Errorf("HistoryMaxAge = %v, want %v", cfg.HistoryMaxAge, 30*24*time.Hour)
	}
}
