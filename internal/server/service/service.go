package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"webchess/internal/server/game"
	"webchess/internal/server/storage"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxComputerGames = 10
	DefaultGameTTL          = 2 * time.Hour
	CleanupJobInterval      = 10 * time.Minute
)

var ErrGameNotFound = errors.New("game not found")

type Config struct {
	MaxComputerGames int
	GameTTL          time.Duration // Idle games older than this are evicted
	WaitTimeout      time.Duration
}

// Service coordinates game state, long-poll waiters and storage
type Service struct {
	games         map[string]*game.Game
	mu            sync.RWMutex
	store         *storage.Store // nil if persistence disabled
	waiter        *WaitRegistry
	computerGames atomic.Int32 // Active games with computer players
	cfg           Config
	logger        zerolog.Logger
}

// New creates a new service instance with optional storage
func New(store *storage.Store, cfg Config, logger zerolog.Logger) *Service {
	if cfg.MaxComputerGames <= 0 {
		cfg.MaxComputerGames = DefaultMaxComputerGames
	}
	if cfg.GameTTL <= 0 {
		cfg.GameTTL = DefaultGameTTL
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = WaitTimeout
	}

	return &Service{
		games:  make(map[string]*game.Game),
		store:  store,
		waiter: NewWaitRegistry(cfg.WaitTimeout),
		cfg:    cfg,
		logger: logger.With().Str("component", "service").Logger(),
	}
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// RegisterWait registers a client to wait for game state changes. The game
// is checked again after registering so a move or deletion that landed in
// between still wakes the client.
func (s *Service) RegisterWait(ctx context.Context, gameID string, moveCount int) <-chan struct{} {
	notify := s.waiter.RegisterWait(ctx, gameID, moveCount)

	g, err := s.GetGame(gameID)
	if err != nil {
		s.waiter.NotifyAll(gameID)
		return notify
	}
	s.waiter.NotifyGame(gameID, g.MoveCount())
	return notify
}

// CanCreateComputerGame checks if a new computer game can be created
func (s *Service) CanCreateComputerGame() bool {
	return int(s.computerGames.Load()) < s.cfg.MaxComputerGames
}

// GetComputerGameCount returns current computer game count
func (s *Service) GetComputerGameCount() int32 {
	return s.computerGames.Load()
}

// GameCount returns the number of games held in memory
func (s *Service) GameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// Shutdown gracefully shuts down the service
func (s *Service) Shutdown(timeout time.Duration) error {
	var errs []error

	if err := s.waiter.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("wait registry: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.games = make(map[string]*game.Game)
	s.computerGames.Store(0)

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RunCleanupJob periodically evicts idle games until ctx is cancelled
func (s *Service) RunCleanupJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.cleanupIdle(time.Now().UTC()); n > 0 {
				s.logger.Info().Int("evicted", n).Msg("cleanup: removed idle games")
			}
		}
	}
}

// cleanupIdle removes games whose last activity is older than the TTL.
// Games with a computer move in flight are kept.
func (s *Service) cleanupIdle(now time.Time) int {
	s.mu.Lock()
	var expired []string
	for id, g := range s.games {
		if now.Sub(g.LastActivity()) > s.cfg.GameTTL && !g.IsPending() {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	evicted := 0
	for _, id := range expired {
		if err := s.DeleteGame(id); err == nil {
			evicted++
		}
	}
	return evicted
}
