package game

import (
	"testing"

	"webchess/internal/server/core"
	"webchess/internal/server/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func humanVsComputer() (*core.Player, *core.Player) {
	white := core.NewPlayer(core.PlayerConfig{Type: core.PlayerHuman}, core.ColorWhite)
	black := core.NewPlayer(core.PlayerConfig{Type: core.PlayerComputer}, core.ColorBlack)
	return white, black
}

func twoHumans() (*core.Player, *core.Player) {
	white := core.NewPlayer(core.PlayerConfig{Type: core.PlayerHuman}, core.ColorWhite)
	black := core.NewPlayer(core.PlayerConfig{Type: core.PlayerHuman}, core.ColorBlack)
	return white, black
}

func TestNewGame(t *testing.T) {
	g := New(humanVsComputer())

	snap := g.Snapshot()
	assert.Equal(t, rules.StartingFEN, snap.FEN)
	assert.Equal(t, core.ColorWhite, snap.Turn)
	assert.Equal(t, core.StateOngoing, snap.State)
	assert.Equal(t, "White to move", snap.Status)
	assert.Empty(t, snap.Moves)
	assert.Nil(t, snap.LastResult)
	assert.True(t, g.HasComputer())
	assert.Equal(t, 1, g.ComputerCount())
	assert.Equal(t, core.PlayerHuman, g.NextPlayer().Type)
}

func TestApplyMove(t *testing.T) {
	g := New(humanVsComputer())

	result, err := g.ApplyMove("e2e4")
	require.NoError(t, err)
	assert.Equal(t, "e2e4", result.Move)
	assert.Equal(t, "e4", result.SAN)
	assert.Equal(t, core.ColorWhite, result.PlayerColor)
	assert.Equal(t, core.StateOngoing, result.GameState)

	assert.Equal(t, []string{"e2e4"}, g.Moves())
	assert.Equal(t, []string{"e4"}, g.SANMoves())
	assert.Equal(t, core.ColorBlack, g.NextTurnColor())
	assert.True(t, g.NextPlayer().IsComputer())
	assert.Equal(t, "Black to move", g.Snapshot().Status)
}

func TestApplyIllegalMove(t *testing.T) {
	g := New(humanVsComputer())
	before := g.CurrentFEN()

	_, err := g.ApplyMove("e2e5")
	assert.ErrorIs(t, err, rules.ErrIllegalMove)
	assert.Equal(t, before, g.CurrentFEN())
	assert.Zero(t, g.MoveCount())
}

func TestApplyMoveOnComputerTurn(t *testing.T) {
	g := New(humanVsComputer())
	_, err := g.ApplyMove("e2e4")
	require.NoError(t, err)

	before := g.CurrentFEN()
	_, err = g.ApplyMove("e7e5")
	assert.ErrorIs(t, err, ErrNotHumanTurn)
	assert.Equal(t, before, g.CurrentFEN())
	assert.Equal(t, 1, g.MoveCount())

	// Handing the side back to a human lets the move through
	g.UpdatePlayers(twoHumans())
	_, err = g.ApplyMove("e7e5")
	assert.NoError(t, err)
}

func TestCheckmateState(t *testing.T) {
	g := New(twoHumans())
	for _, m := range []string{"f2f3", "e7e5", "g2g4"} {
		_, err := g.ApplyMove(m)
		require.NoError(t, err)
	}
	result, err := g.ApplyMove("d8h4")
	require.NoError(t, err)

	assert.Equal(t, core.StateBlackWins, result.GameState)
	state, line := g.EvaluateState()
	assert.Equal(t, core.StateBlackWins, state)
	assert.Equal(t, "Checkmate - Black wins", line)
	assert.Equal(t, "Qh4#", g.Snapshot().SAN[3])
}

func TestStatusLines(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		state core.State
		line  string
	}{
		{name: "stalemate", fen: "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", state: core.StateStalemate, line: "Stalemate - draw"},
		{name: "insufficient", fen: "8/8/8/4k3/8/8/8/4K3 w - - 0 1", state: core.StateDraw, line: "Draw - insufficient material"},
		{name: "mated", fen: "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", state: core.StateBlackWins, line: "Checkmate - Black wins"},
		{name: "black to move", fen: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1", state: core.StateOngoing, line: "Black to move"},
		{name: "loaded in check", fen: "4k3/8/8/8/8/8/4r3/4K3 w - - 0 1", state: core.StateOngoing, line: "White to move - in check"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, b := humanVsComputer()
			g, err := FromFEN(tt.fen, w, b)
			require.NoError(t, err)
			state, line := g.EvaluateState()
			assert.Equal(t, tt.state, state)
			assert.Equal(t, tt.line, line)
		})
	}
}

func TestStatusLineInCheck(t *testing.T) {
	assert.Equal(t, "White to move - in check", StatusLine(rules.StatusOngoing, core.ColorWhite, true))
	assert.Equal(t, "Checkmate - White wins", StatusLine(rules.StatusCheckmate, core.ColorBlack, true))
	assert.Equal(t, "Draw - threefold repetition", StatusLine(rules.StatusThreefoldRepetition, core.ColorWhite, false))
	assert.Equal(t, "Draw - fifty-move rule", StatusLine(rules.StatusFiftyMoveRule, core.ColorBlack, false))
}

func TestFromInvalidFEN(t *testing.T) {
	w, b := humanVsComputer()
	_, err := FromFEN("xyz", w, b)
	assert.ErrorIs(t, err, rules.ErrInvalidFEN)
}

func TestUndoMoves(t *testing.T) {
	g := New(twoHumans())
	for _, m := range []string{"e2e4", "e7e5", "g1f3"} {
		_, err := g.ApplyMove(m)
		require.NoError(t, err)
	}

	_, err := g.UndoMoves(0)
	assert.ErrorIs(t, err, ErrInvalidUndo)
	_, err = g.UndoMoves(4)
	assert.ErrorIs(t, err, ErrInvalidUndo)

	remaining, err := g.UndoMoves(2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, []string{"e2e4"}, g.Moves())
	assert.Nil(t, g.LastResult())
	assert.Equal(t, core.StateOngoing, g.State())
}

func TestUndoAfterCheckmateResumes(t *testing.T) {
	g := New(twoHumans())
	for _, m := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		_, err := g.ApplyMove(m)
		require.NoError(t, err)
	}
	require.Equal(t, core.StateBlackWins, g.State())

	_, err := g.UndoMoves(1)
	require.NoError(t, err)
	assert.Equal(t, core.StateOngoing, g.State())
}

func TestApplyComputerMove(t *testing.T) {
	g := New(humanVsComputer())
	_, err := g.ApplyMove("e2e4")
	require.NoError(t, err)

	e := g.Engine()
	move := e.LegalMoves()[0]

	// Not pending
	_, err = g.ApplyComputerMove(move, 1, 0, 2, 10)
	assert.ErrorIs(t, err, ErrStale)

	require.True(t, g.CompareAndSetState(core.StateOngoing, core.StatePending))

	// Wrong starting move count
	_, err = g.ApplyComputerMove(move, 0, 0, 2, 10)
	assert.ErrorIs(t, err, ErrStale)

	result, err := g.ApplyComputerMove(move, 1, -35, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, move.UCI(), result.Move)
	assert.NotEmpty(t, result.SAN)
	assert.Equal(t, core.ColorBlack, result.PlayerColor)
	assert.Equal(t, -35, result.Score)
	assert.Equal(t, 2, result.Depth)
	assert.Equal(t, 10, result.Nodes)
	assert.Equal(t, core.StateOngoing, g.State())
	assert.Equal(t, 2, g.MoveCount())
}

func TestEngineIsDetached(t *testing.T) {
	g := New(humanVsComputer())
	e := g.Engine()

	_, err := e.MoveUCI("d2d4")
	require.NoError(t, err)
	assert.Equal(t, rules.StartingFEN, g.CurrentFEN())
}

func TestLegalMoves(t *testing.T) {
	g := New(humanVsComputer())

	all, err := g.LegalMoves("")
	require.NoError(t, err)
	assert.Len(t, all, 20)

	knight, err := g.LegalMoves("g1")
	require.NoError(t, err)
	assert.Len(t, knight, 2)

	_, err = g.LegalMoves("x1")
	assert.ErrorIs(t, err, rules.ErrInvalidSquare)
}

func TestCompareAndSetState(t *testing.T) {
	g := New(humanVsComputer())

	assert.True(t, g.CompareAndSetState(core.StateOngoing, core.StatePending))
	assert.False(t, g.CompareAndSetState(core.StateOngoing, core.StatePending))
	assert.Equal(t, core.StatePending, g.State())
}
