package search

import (
	"testing"

	"webchess/internal/server/core"
	"webchess/internal/server/rules"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPositions = []string{
	rules.StartingFEN,
	"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5Q2/PPPP1PPP/RNB1K1NR w KQkq - 4 4",
	"rnbqkbnr/pppp1ppp/8/4p3/3Q4/8/PPP1PPPP/RNB1KBNR b KQkq - 0 1",
	"6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
	"r3k2r/pp3ppp/2n1b3/3pP3/3P4/2N2N2/PP3PPP/R3K2R w KQkq d6 0 10",
}

func engineAt(t *testing.T, fen string) *rules.Engine {
	t.Helper()
	e, err := rules.FromFEN(fen)
	require.NoError(t, err)
	return e
}

func uciMoves(moves []rules.Move) []string {
	return lo.Map(moves, func(m rules.Move, _ int) string { return m.UCI() })
}

func TestSelectRestoresPosition(t *testing.T) {
	s := NewSelector()
	for _, fen := range testPositions {
		for _, cfg := range []Config{
			{Mode: core.ModeRandom},
			{Mode: core.ModeSearch, Depth: 1},
			{Mode: core.ModeSearch, Depth: 2},
			{Mode: core.ModeSearch, Depth: 2, DisablePruning: true},
		} {
			e := engineAt(t, fen)
			before := e.FEN()
			_, err := s.Select(e, cfg)
			require.NoError(t, err)
			assert.Equal(t, before, e.FEN(), "mode %s depth %d", cfg.Mode, cfg.Depth)
			assert.Zero(t, e.Len())
		}
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	s := NewSelector()
	for _, fen := range testPositions {
		first, err := s.Select(engineAt(t, fen), Config{Mode: core.ModeSearch, Depth: 2})
		require.NoError(t, err)
		second, err := s.Select(engineAt(t, fen), Config{Mode: core.ModeSearch, Depth: 2})
		require.NoError(t, err)

		assert.Equal(t, first.Move.UCI(), second.Move.UCI())
		assert.Equal(t, first.Score, second.Score)
		assert.Equal(t, first.Nodes, second.Nodes)
	}
}

func TestRandomModeReturnsLegalMove(t *testing.T) {
	s := NewSelector()
	e := engineAt(t, testPositions[1])
	legal := uciMoves(e.LegalMoves())

	for i := 0; i < 50; i++ {
		res, err := s.Select(e, Config{Mode: core.ModeRandom})
		require.NoError(t, err)
		assert.Contains(t, legal, res.Move.UCI())
		assert.Equal(t, core.ModeRandom, res.Mode)
	}
}

func TestRandomModeUsesIntn(t *testing.T) {
	e := rules.New()
	legal := uciMoves(e.LegalMoves())

	for _, idx := range []int{0, 7, len(legal) - 1} {
		s := NewSelector(WithIntn(func(n int) int {
			require.Equal(t, len(legal), n)
			return idx
		}))
		res, err := s.Select(e, Config{Mode: core.ModeRandom})
		require.NoError(t, err)
		assert.Equal(t, legal[idx], res.Move.UCI())
	}
}

// mirror flips the board vertically and swaps colors
func mirror(b rules.Snapshot) rules.Snapshot {
	var m rules.Snapshot
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p := b[7-r][f]
			if !p.IsEmpty() {
				p.Color = core.OppositeColor(p.Color)
			}
			m[r][f] = p
		}
	}
	return m
}

func TestEvaluate(t *testing.T) {
	assert.Zero(t, Evaluate(rules.New().Board()))
	assert.Equal(t, 900, Evaluate(engineAt(t, "4k3/8/8/8/8/8/8/Q3K3 w - - 0 1").Board()))
	assert.Equal(t, -150, Evaluate(engineAt(t, "4k3/8/3nb3/8/8/8/8/4K2R w - - 0 1").Board()))
}

func TestEvaluateSymmetry(t *testing.T) {
	for _, fen := range testPositions {
		b := engineAt(t, fen).Board()
		assert.Equal(t, -Evaluate(b), Evaluate(mirror(b)), fen)
	}
}

func TestAlphaBetaMatchesMinimax(t *testing.T) {
	for _, fen := range testPositions {
		for depth := 1; depth <= 3; depth++ {
			e := engineAt(t, fen)
			before := e.FEN()
			maximizing := e.Turn() == core.ColorWhite

			var pruned, full Stats
			ab := AlphaBeta(e, depth, -Infinity, Infinity, maximizing, &pruned)
			mm := Minimax(e, depth, maximizing, &full)

			assert.Equal(t, mm, ab, "%s depth %d", fen, depth)
			assert.LessOrEqual(t, pruned.Nodes, full.Nodes)
			assert.Equal(t, before, e.FEN())
		}
	}
}

func TestPrunedRootMatchesUnpruned(t *testing.T) {
	s := NewSelector()
	for _, fen := range testPositions {
		for depth := 1; depth <= 3; depth++ {
			pruned, err := s.Select(engineAt(t, fen), Config{Mode: core.ModeSearch, Depth: depth})
			require.NoError(t, err)
			full, err := s.Select(engineAt(t, fen), Config{Mode: core.ModeSearch, Depth: depth, DisablePruning: true})
			require.NoError(t, err)

			assert.Equal(t, full.Move.UCI(), pruned.Move.UCI(), "%s depth %d", fen, depth)
			assert.Equal(t, full.Score, pruned.Score, "%s depth %d", fen, depth)
		}
	}
}

func TestMateInOne(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want string
	}{
		{name: "white back rank", fen: "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", want: "a1a8"},
		{name: "black back rank", fen: "r5k1/8/8/8/8/8/5PPP/6K1 b - - 0 1", want: "a8a1"},
	}

	s := NewSelector()
	for _, tt := range tests {
		for depth := 1; depth <= 3; depth++ {
			res, err := s.Select(engineAt(t, tt.fen), Config{Mode: core.ModeSearch, Depth: depth})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Move.UCI(), "%s depth %d", tt.name, depth)
			assert.GreaterOrEqual(t, abs(res.Score), MateScore, "%s depth %d", tt.name, depth)
		}
	}
}

func TestStartPositionDepthTwo(t *testing.T) {
	e := rules.New()
	legal := uciMoves(e.LegalMoves())

	res, err := NewSelector().Select(e, Config{Mode: core.ModeSearch, Depth: 2})
	require.NoError(t, err)
	assert.Contains(t, legal, res.Move.UCI())
	assert.Zero(t, res.Score)
	assert.Equal(t, 2, res.Depth)
	assert.Positive(t, res.Nodes)
}

func TestBlackTakesFreeQueen(t *testing.T) {
	e := engineAt(t, "rnbqkbnr/pppp1ppp/8/4p3/3Q4/8/PPP1PPPP/RNB1KBNR b KQkq - 0 1")

	res, err := NewSelector().Select(e, Config{Mode: core.ModeSearch, Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, "e5d4", res.Move.UCI())
	assert.Less(t, res.Score, 0)

	// Material after the chosen move is strictly better for Black
	before := Evaluate(e.Board())
	require.NoError(t, e.Apply(res.Move))
	assert.Less(t, Evaluate(e.Board()), before)
	assert.Equal(t, before-900, Evaluate(e.Board()))
}

func TestSelectErrors(t *testing.T) {
	s := NewSelector()

	mated := engineAt(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	_, err := s.Select(mated, Config{Mode: core.ModeSearch, Depth: 2})
	assert.ErrorIs(t, err, ErrNoMove)
	_, err = s.Select(mated, Config{Mode: core.ModeRandom})
	assert.ErrorIs(t, err, ErrNoMove)

	stalemate := engineAt(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	_, err = s.Select(stalemate, Config{Mode: core.ModeRandom})
	assert.ErrorIs(t, err, ErrNoMove)

	e := rules.New()
	_, err = s.Select(e, Config{Mode: core.ModeSearch, Depth: 0})
	assert.ErrorIs(t, err, ErrInvalidDepth)
	_, err = s.Select(e, Config{Mode: core.ModeSearch, Depth: core.MaxDepth + 1})
	assert.ErrorIs(t, err, ErrInvalidDepth)
	_, err = s.Select(e, Config{Mode: "greedy", Depth: 2})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestTerminalScores(t *testing.T) {
	mated := engineAt(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	assert.Equal(t, -(MateScore + 3), AlphaBeta(mated, 3, -Infinity, Infinity, true, nil))

	stalemate := engineAt(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	assert.Zero(t, AlphaBeta(stalemate, 2, -Infinity, Infinity, false, nil))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
