package rules

import (
	"testing"

	"webchess/internal/server/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, e *Engine, moves ...string) {
	t.Helper()
	for _, m := range moves {
		_, err := e.MoveUCI(m)
		require.NoError(t, err, "move %s", m)
	}
}

func TestNewEngineStartingPosition(t *testing.T) {
	e := New()

	assert.Equal(t, StartingFEN, e.FEN())
	assert.Equal(t, StartingFEN, e.InitialFEN())
	assert.Equal(t, core.ColorWhite, e.Turn())
	assert.Len(t, e.LegalMoves(), 20)
	assert.False(t, e.InCheck())
	assert.Equal(t, StatusOngoing, e.Status())
	assert.Zero(t, e.Len())
}

func TestMoveConfirmation(t *testing.T) {
	e := New()

	m, err := e.Move(MoveSpec{From: "e2", To: "e4"})
	require.NoError(t, err)
	assert.Equal(t, "e4", m.SAN)
	assert.Equal(t, "e2e4", m.UCI())
	assert.Equal(t, Pawn, m.Piece)
	assert.Equal(t, core.ColorWhite, m.Color)
	assert.False(t, m.Capture)
	assert.Equal(t, core.ColorBlack, e.Turn())
	assert.Equal(t, 1, e.Len())
}

func TestIllegalMoveDoesNotMutate(t *testing.T) {
	e := New()
	play(t, e, "e2e4")
	before := e.FEN()

	_, err := e.MoveUCI("e4e6")
	assert.ErrorIs(t, err, ErrIllegalMove)

	err = e.Apply(Move{From: "d1", To: "h5"})
	assert.ErrorIs(t, err, ErrIllegalMove)

	assert.Equal(t, before, e.FEN())
	assert.Equal(t, 1, e.Len())
}

func TestMoveRejectsBadInput(t *testing.T) {
	e := New()

	_, err := e.MoveUCI("e2")
	assert.ErrorIs(t, err, ErrInvalidUCI)

	_, err = e.MoveUCI("e2e4x")
	assert.ErrorIs(t, err, ErrInvalidUCI)

	_, err = e.Move(MoveSpec{From: "i2", To: "e4"})
	assert.ErrorIs(t, err, ErrInvalidSquare)
}

func TestUndoRestoresPosition(t *testing.T) {
	e := New()
	play(t, e, "e2e4")
	afterWhite := e.FEN()
	play(t, e, "e7e5")

	undone, ok := e.Undo()
	require.True(t, ok)
	assert.Equal(t, "e7e5", undone.UCI())
	assert.Equal(t, core.ColorBlack, undone.Color)
	assert.Equal(t, afterWhite, e.FEN())

	_, ok = e.Undo()
	require.True(t, ok)
	assert.Equal(t, StartingFEN, e.FEN())

	_, ok = e.Undo()
	assert.False(t, ok)
}

func TestApplyLegalMoveRoundTrip(t *testing.T) {
	e := New()
	for _, m := range e.LegalMoves() {
		require.NoError(t, e.Apply(m))
		_, ok := e.Undo()
		require.True(t, ok)
		require.Equal(t, StartingFEN, e.FEN())
	}
}

func TestLegalMovesFrom(t *testing.T) {
	e := New()

	moves, err := e.LegalMovesFrom("e2")
	require.NoError(t, err)
	var targets []string
	for _, m := range moves {
		targets = append(targets, m.To)
	}
	assert.ElementsMatch(t, []string{"e3", "e4"}, targets)

	moves, err = e.LegalMovesFrom("e4")
	require.NoError(t, err)
	assert.Empty(t, moves)

	_, err = e.LegalMovesFrom("z9")
	assert.ErrorIs(t, err, ErrInvalidSquare)
}

func TestCheckmate(t *testing.T) {
	e := New()
	play(t, e, "f2f3", "e7e5", "g2g4", "d8h4")

	assert.Equal(t, StatusCheckmate, e.Status())
	assert.True(t, e.IsGameOver())
	assert.True(t, e.InCheck())
	assert.Empty(t, e.LegalMoves())

	winner, ok := e.Winner()
	require.True(t, ok)
	assert.Equal(t, core.ColorBlack, winner)

	history := e.History()
	require.Len(t, history, 4)
	assert.Equal(t, "Qh4#", history[3].SAN)
}

func TestCheckFromMoveTag(t *testing.T) {
	e := New()
	play(t, e, "e2e4", "f7f6", "d1h5")

	assert.True(t, e.InCheck())
	assert.Equal(t, StatusOngoing, e.Status())
	_, ok := e.Winner()
	assert.False(t, ok)
}

func TestCheckAtLoadedPosition(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		check bool
	}{
		{name: "rook checks white", fen: "4k3/8/8/8/8/8/4r3/4K3 w - - 0 1", check: true},
		{name: "knight checks black", fen: "4k3/8/3N4/8/8/8/8/4K3 b - - 0 1", check: true},
		{name: "bishop checks after castling rights", fen: "r3k2r/8/8/1B6/8/8/8/R3K2R b KQkq - 0 1", check: true},
		{name: "blocked rook", fen: "4k3/8/8/8/8/8/4r3/4B1K1 w - - 0 1"},
		{name: "start", fen: StartingFEN},
		{name: "stalemate", fen: "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := FromFEN(tt.fen)
			require.NoError(t, err)
			assert.Equal(t, tt.check, e.InCheck())
		})
	}
}

func TestCheckAtLoadedPositionAfterUndo(t *testing.T) {
	e, err := FromFEN("4k3/8/8/8/8/8/4r3/4K3 w - - 0 1")
	require.NoError(t, err)
	require.True(t, e.InCheck())
	assert.Equal(t, StatusOngoing, e.Status())

	play(t, e, "e1f1")
	assert.False(t, e.InCheck())

	_, ok := e.Undo()
	require.True(t, ok)
	assert.True(t, e.InCheck())
}

func TestStalemate(t *testing.T) {
	e, err := FromFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)

	assert.Equal(t, StatusStalemate, e.Status())
	assert.True(t, e.Status().IsDraw())
	assert.False(t, e.InCheck())
	assert.Empty(t, e.LegalMoves())
}

func TestInsufficientMaterial(t *testing.T) {
	e, err := FromFEN("8/8/8/4k3/8/8/8/4K3 w - - 0 1")
	require.NoError(t, err)

	assert.Equal(t, StatusInsufficientMaterial, e.Status())
	assert.True(t, e.IsGameOver())
}

func TestThreefoldRepetition(t *testing.T) {
	e := New()
	play(t, e, "g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1")
	assert.Equal(t, StatusOngoing, e.Status())

	play(t, e, "f6g8")
	assert.Equal(t, StatusThreefoldRepetition, e.Status())
	assert.True(t, e.Status().IsDraw())
}

func TestFiftyMoveRule(t *testing.T) {
	e, err := FromFEN("8/8/8/4k3/8/8/R7/4K3 w - - 99 80")
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, e.Status())

	play(t, e, "a2a3")
	assert.Equal(t, StatusFiftyMoveRule, e.Status())
}

func TestPromotion(t *testing.T) {
	e, err := FromFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	require.NoError(t, err)

	_, err = e.MoveUCI("a7a8")
	assert.ErrorIs(t, err, ErrIllegalMove)

	m, err := e.MoveUCI("a7a8q")
	require.NoError(t, err)
	assert.Equal(t, Queen, m.Promotion)
	assert.Equal(t, "a7a8q", m.UCI())
	assert.Contains(t, m.SAN, "a8=Q")
	assert.Equal(t, Piece{Color: core.ColorWhite, Type: Queen}, e.Board().At("a8"))
}

func TestInvalidFEN(t *testing.T) {
	_, err := FromFEN("not a fen")
	assert.ErrorIs(t, err, ErrInvalidFEN)
}

func TestForkIsIndependent(t *testing.T) {
	e := New()
	play(t, e, "e2e4", "f7f6", "d1h5")

	f := e.Fork()
	assert.Equal(t, e.FEN(), f.FEN())
	assert.Zero(t, f.Len())
	assert.True(t, f.InCheck())

	play(t, f, "g7g6")
	assert.Equal(t, 3, e.Len())
	assert.NotEqual(t, e.FEN(), f.FEN())
}

func TestPGN(t *testing.T) {
	e := New()
	play(t, e, "e2e4", "e7e5")

	pgn := e.PGN()
	assert.Contains(t, pgn, "e4")
	assert.Contains(t, pgn, "e5")

	fen := "8/P7/8/8/8/8/8/k6K w - - 0 1"
	e, err := FromFEN(fen)
	require.NoError(t, err)
	assert.Contains(t, e.PGN(), fen)
}

func TestParseUCI(t *testing.T) {
	tests := []struct {
		in      string
		want    MoveSpec
		wantErr bool
	}{
		{in: "e2e4", want: MoveSpec{From: "e2", To: "e4"}},
		{in: "a7a8n", want: MoveSpec{From: "a7", To: "a8", Promotion: Knight}},
		{in: "a7a8k", wantErr: true},
		{in: "e9e4", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUCI(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidUCI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
