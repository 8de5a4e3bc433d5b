package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/resumable-download/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// Root is the download directory scanned for abandoned temp files
	Root string

	// CleanupInterval is how often to run cleanup tasks
	CleanupInterval time.Duration

	// TempFileMaxAge is the maximum age of temp files before cleanup
	TempFileMaxAge time.Duration

	// HistoryMaxAge is the maximum age of attempt records before cleanup
	HistoryMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		Root:            ".",
		CleanupInterval: time.Hour,
		TempFileMaxAge:  7 * 24 * time.Hour,
		HistoryMaxAge:   30 * 24 * time.Hour,
	}
}

// Report summarises one cleanup run
type Report struct {
	TempFilesDeleted int
	AttemptsDeleted  int
}

// Service removes abandoned temp files and prunes the attempt history
type Service struct {
	config  *Config
	store   port.TransferStore
	history port.AttemptRepository
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service. history may be nil.
func New(cfg *Config, store port.TransferStore, history port.AttemptRepository, logger *zap.Logger) *Service {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.Root == "" {
		cfg.Root = defaults.Root
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = defaults.TempFileMaxAge
	}
	if cfg.HistoryMaxAge == 0 {
		cfg.HistoryMaxAge = defaults.HistoryMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:  cfg,
		store:   store,
		history: history,
		logger:  logger,
	}
}

// Start runs cleanup every CleanupInterval until ctx is done or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.String("root", s.config.Root),
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// RunOnce performs a single cleanup pass. Both steps always run; their
// errors are joined.
func (s *Service) RunOnce() (Report, error) {
	var report Report
	var errs []error

	count, err := s.cleanupTempFiles()
	report.TempFilesDeleted = count
	if err != nil {
		errs = append(errs, err)
	}

	count, err = s.cleanupHistory()
	report.AttemptsDeleted = count
	if err != nil {
		errs = append(errs, err)
	}

	return report, errors.Join(errs...)
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.RunOnce()
		}
	}
}

// cleanupTempFiles removes abandoned temp files below the root
func (s *Service) cleanupTempFiles() (int, error) {
	fileCount, err := s.store.CleanOldTempFiles(s.config.Root, s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
		return fileCount, fmt.Errorf("clean temp files: %w", err)
	}
	if fileCount > 0 {
		s.logger.Info("cleaned up old temp files", zap.Int("count", fileCount))
	}
	return fileCount, nil
}

// cleanupHistory removes old attempt records
func (s *Service) cleanupHistory() (int, error) {
	if s.history == nil {
		return 0, nil
	}
	cleared, err := s.history.CleanupOldAttempts(s.config.HistoryMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup attempt history", zap.Error(err))
		return 0, fmt.Errorf("clean attempt history: %w", err)
	}
	if cleared > 0 {
		s.logger.Info("cleaned up old attempts", zap.Int("count", cleared))
	}
	return cleared, nil
}
