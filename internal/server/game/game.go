package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"webchess/internal/server/core"
	"webchess/internal/server/rules"

	"github.com/samber/lo"
)

var (
	ErrInvalidUndo  = errors.New("invalid undo")
	ErrStale        = errors.New("game changed during computer move")
	ErrNotHumanTurn = errors.New("side to move is played by the computer")
)

// Snapshot is a consistent read of a game taken under one lock
type Snapshot struct {
	FEN        string
	InitialFEN string
	PGN        string
	Turn       core.Color
	State      core.State
	Status     string
	InCheck    bool
	Moves      []string // UCI
	SAN        []string
	White      *core.Player
	Black      *core.Player
	LastResult *MoveResult
}

// MoveResult tracks the outcome of a move
type MoveResult struct {
	Move        string     `json:"move"`
	SAN         string     `json:"san"`
	PlayerColor core.Color `json:"playerColor"`
	GameState   core.State `json:"gameState"`
	Score       int        `json:"score"`
	Depth       int        `json:"depth"`
	Nodes       int        `json:"nodes"`
}

type Game struct {
	mu           sync.RWMutex
	engine       *rules.Engine
	players      map[core.Color]*core.Player
	state        core.State
	lastResult   *MoveResult
	createdAt    time.Time
	lastActivity time.Time
}

// New starts a game from the standard position
func New(whitePlayer, blackPlayer *core.Player) *Game {
	return newGame(rules.New(), whitePlayer, blackPlayer)
}

// FromFEN starts a game from an arbitrary position, which may already be finished
func FromFEN(fen string, whitePlayer, blackPlayer *core.Player) (*Game, error) {
	e, err := rules.FromFEN(fen)
	if err != nil {
		return nil, err
	}
	return newGame(e, whitePlayer, blackPlayer), nil
}

func newGame(e *rules.Engine, whitePlayer, blackPlayer *core.Player) *Game {
	now := time.Now().UTC()
	g := &Game{
		engine: e,
		players: map[core.Color]*core.Player{
			core.ColorWhite: whitePlayer,
			core.ColorBlack: blackPlayer,
		},
		createdAt:    now,
		lastActivity: now,
	}
	g.refreshState()
	return g
}

// Snapshot returns the current game view
func (g *Game) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	history := g.engine.History()
	snap := Snapshot{
		FEN:        g.engine.FEN(),
		InitialFEN: g.engine.InitialFEN(),
		PGN:        g.engine.PGN(),
		Turn:       g.engine.Turn(),
		State:      g.state,
		Status:     g.statusLine(),
		InCheck:    g.engine.InCheck(),
		Moves:      lo.Map(history, func(m rules.Move, _ int) string { return m.UCI() }),
		SAN:        lo.Map(history, func(m rules.Move, _ int) string { return m.SAN }),
		White:      g.players[core.ColorWhite],
		Black:      g.players[core.ColorBlack],
	}
	if g.lastResult != nil {
		r := *g.lastResult
		snap.LastResult = &r
	}
	return snap
}

// ApplyMove plays a human move given in UCI form. It fails with
// ErrNotHumanTurn when the computer plays the side to move.
func (g *Game) ApplyMove(uci string) (*MoveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.players[g.engine.Turn()].IsComputer() {
		return nil, ErrNotHumanTurn
	}

	m, err := g.engine.MoveUCI(uci)
	if err != nil {
		return nil, err
	}
	g.refreshState()

	result := &MoveResult{
		Move:        m.UCI(),
		SAN:         m.SAN,
		PlayerColor: m.Color,
		GameState:   g.state,
	}
	g.lastResult = result
	g.lastActivity = time.Now().UTC()
	r := *result
	return &r, nil
}

// ApplyComputerMove plays a searched move if the game is still pending at
// the move count the search started from
func (g *Game) ApplyComputerMove(m rules.Move, fromMoveCount, score, depth, nodes int) (*MoveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != core.StatePending || g.engine.Len() != fromMoveCount {
		return nil, ErrStale
	}

	applied, err := g.engine.Move(m.Spec())
	if err != nil {
		return nil, err
	}
	g.state = core.StateOngoing
	g.refreshState()

	result := &MoveResult{
		Move:        applied.UCI(),
		SAN:         applied.SAN,
		PlayerColor: applied.Color,
		GameState:   g.state,
		Score:       score,
		Depth:       depth,
		Nodes:       nodes,
	}
	g.lastResult = result
	g.lastActivity = time.Now().UTC()
	r := *result
	return &r, nil
}

// UndoMoves takes back count moves and returns the remaining move count
func (g *Game) UndoMoves(count int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if count < 1 {
		return 0, fmt.Errorf("%w: count %d", ErrInvalidUndo, count)
	}
	if available := g.engine.Len(); available < count {
		return 0, fmt.Errorf("%w: cannot undo %d moves, only %d available", ErrInvalidUndo, count, available)
	}

	for i := 0; i < count; i++ {
		g.engine.Undo()
	}
	g.state = core.StateOngoing
	g.refreshState()
	g.lastResult = nil
	g.lastActivity = time.Now().UTC()
	return g.engine.Len(), nil
}

// Engine returns a detached copy of the position for searching
func (g *Game) Engine() *rules.Engine {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Fork()
}

func (g *Game) LegalMoves(square string) ([]rules.Move, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if square == "" {
		return g.engine.LegalMoves(), nil
	}
	return g.engine.LegalMovesFrom(square)
}

func (g *Game) Board() rules.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Board()
}

func (g *Game) CurrentFEN() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.FEN()
}

func (g *Game) InitialFEN() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.InitialFEN()
}

func (g *Game) PGN() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.PGN()
}

func (g *Game) InCheck() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.InCheck()
}

// MoveCount returns the number of moves played
func (g *Game) MoveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Len()
}

func (g *Game) Moves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return lo.Map(g.engine.History(), func(m rules.Move, _ int) string { return m.UCI() })
}

func (g *Game) SANMoves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return lo.Map(g.engine.History(), func(m rules.Move, _ int) string { return m.SAN })
}

func (g *Game) NextTurnColor() core.Color {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Turn()
}

func (g *Game) NextPlayer() *core.Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.players[g.engine.Turn()]
}

func (g *Game) GetPlayer(color core.Color) *core.Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.players[color]
}

// HasComputer reports whether at least one side is played by the computer
func (g *Game) HasComputer() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.players[core.ColorWhite].IsComputer() || g.players[core.ColorBlack].IsComputer()
}

// ComputerCount returns how many sides are played by the computer
func (g *Game) ComputerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return lo.CountBy([]*core.Player{g.players[core.ColorWhite], g.players[core.ColorBlack]}, func(p *core.Player) bool {
		return p.IsComputer()
	})
}

func (g *Game) UpdatePlayers(whitePlayer, blackPlayer *core.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.players[core.ColorWhite] = whitePlayer
	g.players[core.ColorBlack] = blackPlayer
	g.lastActivity = time.Now().UTC()
}

func (g *Game) LastResult() *MoveResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastResult
}

func (g *Game) State() core.State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Game) SetState(s core.State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

// IsPending reports whether a computer move is being calculated
func (g *Game) IsPending() bool {
	return g.State() == core.StatePending
}

// CompareAndSetState moves the game from one state to another atomically
func (g *Game) CompareAndSetState(from, to core.State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != from {
		return false
	}
	g.state = to
	return true
}

// EvaluateState recomputes the state from the position and returns it with
// the status line shown to players
func (g *Game) EvaluateState() (core.State, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshState()
	return g.state, g.statusLine()
}

func (g *Game) CreatedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.createdAt
}

func (g *Game) LastActivity() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastActivity
}

// Touch marks the game as used so idle cleanup skips it
func (g *Game) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastActivity = time.Now().UTC()
}

// refreshState maps the rules status onto the game state. Pending and
// stuck are left alone while the position is still playable.
func (g *Game) refreshState() {
	switch status := g.engine.Status(); status {
	case rules.StatusCheckmate:
		if winner, _ := g.engine.Winner(); winner == core.ColorWhite {
			g.state = core.StateWhiteWins
		} else {
			g.state = core.StateBlackWins
		}
	case rules.StatusStalemate:
		g.state = core.StateStalemate
	case rules.StatusOngoing:
		if g.state.IsFinished() {
			g.state = core.StateOngoing
		}
	default:
		g.state = core.StateDraw
	}
}

func (g *Game) statusLine() string {
	return StatusLine(g.engine.Status(), g.engine.Turn(), g.engine.InCheck())
}

// StatusLine renders a position status for players
func StatusLine(status rules.Status, turn core.Color, inCheck bool) string {
	switch status {
	case rules.StatusCheckmate:
		return fmt.Sprintf("Checkmate - %s wins", core.OppositeColor(turn).Name())
	case rules.StatusStalemate:
		return "Stalemate - draw"
	case rules.StatusOngoing:
		if inCheck {
			return fmt.Sprintf("%s to move - in check", turn.Name())
		}
		return fmt.Sprintf("%s to move", turn.Name())
	default:
		return "Draw - " + status.String()
	}
}
