// Package search picks the computer's move: uniformly at random, or by a
// fixed-depth minimax search with alpha-beta pruning over material.
package search

import (
	"errors"
	"fmt"
	"time"

	"webchess/internal/server/core"
	"webchess/internal/server/rules"

	"github.com/rs/zerolog"
	"lukechampine.com/frand"
)

var (
	ErrNoMove       = errors.New("no move available")
	ErrInvalidDepth = errors.New("invalid search depth")
	ErrUnknownMode  = errors.New("unknown computer mode")
)

type Config struct {
	Mode           core.AIMode
	Depth          int
	DisablePruning bool
}

type Result struct {
	Move  rules.Move
	Score int // White's point of view, 0 in random mode
	Depth int
	Nodes int
	Mode  core.AIMode
	Took  time.Duration
}

type Option func(*Selector)

// WithIntn replaces the random source used in random mode
func WithIntn(intn func(n int) int) Option {
	return func(s *Selector) {
		s.intn = intn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Selector) {
		s.logger = logger
	}
}

// Selector is stateless between calls and safe for concurrent use as long
// as each call gets its own Position.
type Selector struct {
	intn   func(n int) int
	logger zerolog.Logger
}

func NewSelector(opts ...Option) *Selector {
	s := &Selector{
		intn:   frand.Intn,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns one legal move for the side to move. The position is
// restored before Select returns, including when the search panics.
func (s *Selector) Select(pos Position, cfg Config) (res *Result, err error) {
	if cfg.Mode == "" {
		cfg.Mode = core.ModeSearch
	}
	if cfg.Mode != core.ModeRandom && cfg.Mode != core.ModeSearch {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
	if cfg.Mode == core.ModeSearch && (cfg.Depth < 1 || cfg.Depth > core.MaxDepth) {
		return nil, fmt.Errorf("%w: %d (want 1-%d)", ErrInvalidDepth, cfg.Depth, core.MaxDepth)
	}

	if pos.IsGameOver() {
		return nil, ErrNoMove
	}
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return nil, ErrNoMove
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("search failed: %v", r)
		}
		if res != nil {
			res.Took = time.Since(start)
			s.logger.Debug().
				Str("mode", string(res.Mode)).
				Str("move", res.Move.UCI()).
				Int("score", res.Score).
				Int("depth", res.Depth).
				Int("nodes", res.Nodes).
				Dur("took", res.Took).
				Msg("move selected")
		}
	}()

	if cfg.Mode == core.ModeRandom {
		return &Result{Move: moves[s.intn(len(moves))], Mode: core.ModeRandom}, nil
	}
	return s.searchRoot(pos, moves, cfg), nil
}

// searchRoot scores every root move. White keeps the highest score and Black
// the lowest; on ties the earlier move in engine order wins.
func (s *Selector) searchRoot(pos Position, moves []rules.Move, cfg Config) *Result {
	var stats Stats
	stats.visit()

	maximizing := pos.Turn() == core.ColorWhite
	alpha, beta := -Infinity, Infinity
	bestIdx, bestScore := -1, 0

	for i, m := range moves {
		score := withMove(pos, m, func() int {
			if cfg.DisablePruning {
				return Minimax(pos, cfg.Depth-1, !maximizing, &stats)
			}
			return AlphaBeta(pos, cfg.Depth-1, alpha, beta, !maximizing, &stats)
		})

		if bestIdx < 0 || (maximizing && score > bestScore) || (!maximizing && score < bestScore) {
			bestIdx, bestScore = i, score
		}
		if maximizing {
			alpha = max(alpha, bestScore)
		} else {
			beta = min(beta, bestScore)
		}
	}

	return &Result{
		Move:  moves[bestIdx],
		Score: bestScore,
		Depth: cfg.Depth,
		Nodes: stats.Nodes,
		Mode:  core.ModeSearch,
	}
}
