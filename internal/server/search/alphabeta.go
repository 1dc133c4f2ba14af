package search

import (
	"fmt"

	"webchess/internal/server/core"
	"webchess/internal/server/rules"
)

const (
	// MateScore is larger than any material balance
	MateScore = 1_000_000
	Infinity  = 2 * MateScore
)

// Position is the view of a rules engine the search needs
type Position interface {
	LegalMoves() []rules.Move
	Apply(m rules.Move) error
	Undo() (rules.Move, bool)
	Turn() core.Color
	InCheck() bool
	IsGameOver() bool
	Board() rules.Snapshot
}

// Stats counts visited nodes
type Stats struct {
	Nodes int
}

func (s *Stats) visit() {
	if s != nil {
		s.Nodes++
	}
}

// AlphaBeta returns the minimax value of pos from White's point of view,
// pruning branches that cannot change the result. maximizing is true when
// White is to move.
func AlphaBeta(pos Position, depth, alpha, beta int, maximizing bool, stats *Stats) int {
	stats.visit()

	if depth == 0 {
		return leaf(pos)
	}

	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return terminal(pos, depth)
	}

	if maximizing {
		best := -Infinity
		for _, m := range moves {
			score := withMove(pos, m, func() int {
				return AlphaBeta(pos, depth-1, alpha, beta, false, stats)
			})
			best = max(best, score)
			alpha = max(alpha, best)
			if beta <= alpha {
				break
			}
		}
		return best
	}

	best := Infinity
	for _, m := range moves {
		score := withMove(pos, m, func() int {
			return AlphaBeta(pos, depth-1, alpha, beta, true, stats)
		})
		best = min(best, score)
		beta = min(beta, best)
		if beta <= alpha {
			break
		}
	}
	return best
}

// Minimax is AlphaBeta without pruning. It visits every node and exists to
// cross-check the pruned search.
func Minimax(pos Position, depth int, maximizing bool, stats *Stats) int {
	stats.visit()

	if depth == 0 {
		return leaf(pos)
	}

	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return terminal(pos, depth)
	}

	best := Infinity
	if maximizing {
		best = -Infinity
	}
	for _, m := range moves {
		score := withMove(pos, m, func() int {
			return Minimax(pos, depth-1, !maximizing, stats)
		})
		if maximizing {
			best = max(best, score)
		} else {
			best = min(best, score)
		}
	}
	return best
}

// leaf scores a horizon node. Moves are only generated when the side to move
// is in check, so a mate delivered by the last searched move is still seen.
func leaf(pos Position) int {
	if pos.InCheck() && len(pos.LegalMoves()) == 0 {
		return terminal(pos, 0)
	}
	return Evaluate(pos.Board())
}

// terminal scores a node without legal moves: mate if in check, else stalemate.
// Remaining depth is added so nearer mates score further from zero.
func terminal(pos Position, depth int) int {
	if !pos.InCheck() {
		return 0
	}
	if pos.Turn() == core.ColorWhite {
		return -(MateScore + depth)
	}
	return MateScore + depth
}

// withMove applies m, runs fn and always takes the move back
func withMove(pos Position, m rules.Move, fn func() int) int {
	if err := pos.Apply(m); err != nil {
		panic(fmt.Sprintf("search: generated move %s rejected: %v", m.UCI(), err))
	}
	defer pos.Undo()
	return fn()
}
