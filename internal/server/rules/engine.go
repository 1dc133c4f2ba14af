// Package rules adapts the notnil/chess rules library to the operations the
// game controller and move search need: legal move queries, apply and undo,
// game status, board snapshots and FEN/PGN/SAN text.
//
// The library positions are immutable, so the engine keeps a stack of them
// and undo is a pop. An Engine is not safe for concurrent use.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"webchess/internal/server/core"

	"github.com/notnil/chess"
)

const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrInvalidSquare = errors.New("invalid square")
	ErrInvalidFEN    = errors.New("invalid FEN")
	ErrInvalidUCI    = errors.New("invalid UCI move")
)

type Status int

const (
	StatusOngoing Status = iota
	StatusCheckmate
	StatusStalemate
	StatusThreefoldRepetition
	StatusInsufficientMaterial
	StatusFiftyMoveRule
)

func (s Status) String() string {
	switch s {
	case StatusCheckmate:
		return "checkmate"
	case StatusStalemate:
		return "stalemate"
	case StatusThreefoldRepetition:
		return "threefold repetition"
	case StatusInsufficientMaterial:
		return "insufficient material"
	case StatusFiftyMoveRule:
		return "fifty-move rule"
	default:
		return "ongoing"
	}
}

// IsDraw reports whether the status ends the game without a winner
func (s Status) IsDraw() bool {
	return s != StatusOngoing && s != StatusCheckmate
}

// MoveSpec describes a move by its squares, as a user would enter it
type MoveSpec struct {
	From      string
	To        string
	Promotion PieceType
}

// ParseUCI parses "e2e4" or "e7e8q" into a MoveSpec
func ParseUCI(s string) (MoveSpec, error) {
	if len(s) < 4 || len(s) > 5 || !ValidSquare(s[0:2]) || !ValidSquare(s[2:4]) {
		return MoveSpec{}, fmt.Errorf("%w: %q", ErrInvalidUCI, s)
	}
	spec := MoveSpec{From: s[0:2], To: s[2:4]}
	if len(s) == 5 {
		promo, ok := ParsePromotion(s[4])
		if !ok {
			return MoveSpec{}, fmt.Errorf("%w: %q", ErrInvalidUCI, s)
		}
		spec.Promotion = promo
	}
	return spec, nil
}

// Move is a legal move as reported by the engine
type Move struct {
	From      string
	To        string
	Promotion PieceType
	Piece     PieceType
	Color     core.Color
	Capture   bool
	Check     bool
	SAN       string // Filled for applied moves and history, empty in legal move lists

	raw *chess.Move
}

// UCI returns the move in long algebraic form, e.g. "e2e4" or "a7a8q"
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion.String()
}

func (m Move) Spec() MoveSpec {
	return MoveSpec{From: m.From, To: m.To, Promotion: m.Promotion}
}

type frame struct {
	pos  *chess.Position // position before the move
	move *chess.Move
}

type Engine struct {
	initialFEN string
	pos        *chess.Position
	stack      []frame
	rootCheck  bool
}

// New returns an engine at the standard starting position
func New() *Engine {
	e, _ := FromFEN(StartingFEN)
	return e
}

// FromFEN returns an engine at the given position
func FromFEN(fen string) (*Engine, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	pos := chess.NewGame(opt).Position()
	return &Engine{
		initialFEN: pos.String(),
		pos:        pos,
		rootCheck:  attackedKing(pos),
	}, nil
}

// attackedKing reports whether the king of the side to move is attacked. The
// library only tags check on moves, so the question is put to it the other
// way around: with the opponent to move, can any of its moves land on the king?
// A checking piece that is itself pinned is not seen this way.
func attackedKing(pos *chess.Position) (attacked bool) {
	king := chess.NoSquare
	for sq, p := range pos.Board().SquareMap() {
		if p.Type() == chess.King && p.Color() == pos.Turn() {
			king = sq
			break
		}
	}
	if king == chess.NoSquare {
		return false
	}

	fields := strings.Fields(pos.String())
	if len(fields) < 4 {
		return false
	}
	fields[1] = "w"
	if pos.Turn() == chess.White {
		fields[1] = "b"
	}
	fields[2], fields[3] = "-", "-"

	opt, err := chess.FEN(strings.Join(fields, " "))
	if err != nil {
		return false
	}

	// The flipped position is not a legal one and the library may reject it
	defer func() {
		if recover() != nil {
			attacked = false
		}
	}()
	for _, m := range chess.NewGame(opt).Position().ValidMoves() {
		if m.S2() == king {
			return true
		}
	}
	return false
}

// Fork returns an independent engine at the current position without history.
// The fork shares no library objects with the receiver, so it can be searched
// on another goroutine.
func (e *Engine) Fork() *Engine {
	f, err := FromFEN(e.pos.String())
	if err != nil {
		// The library produced this FEN itself
		panic(fmt.Sprintf("rules: fork of unparsable position: %v", err))
	}
	f.rootCheck = e.InCheck()
	return f
}

// LegalMoves returns every legal move for the side to move in library order
func (e *Engine) LegalMoves() []Move {
	valid := e.pos.ValidMoves()
	moves := make([]Move, 0, len(valid))
	for _, m := range valid {
		moves = append(moves, e.describe(e.pos, m))
	}
	return moves
}

// LegalMovesFrom returns the legal moves starting on one square
func (e *Engine) LegalMovesFrom(square string) ([]Move, error) {
	sq, err := parseSquare(square)
	if err != nil {
		return nil, err
	}
	var moves []Move
	for _, m := range e.pos.ValidMoves() {
		if m.S1() == sq {
			moves = append(moves, e.describe(e.pos, m))
		}
	}
	return moves, nil
}

// Move applies a move given by specification and returns its confirmation.
// An illegal move leaves the engine untouched and returns ErrIllegalMove.
func (e *Engine) Move(spec MoveSpec) (*Move, error) {
	m, err := e.find(spec)
	if err != nil {
		return nil, err
	}
	before := e.pos
	confirmed := e.describe(before, m)
	confirmed.SAN = chess.AlgebraicNotation{}.Encode(before, m)
	e.push(m)
	return &confirmed, nil
}

// MoveUCI parses and applies a move in UCI form
func (e *Engine) MoveUCI(s string) (*Move, error) {
	spec, err := ParseUCI(s)
	if err != nil {
		return nil, err
	}
	return e.Move(spec)
}

// Apply plays a move without computing its notation
func (e *Engine) Apply(m Move) error {
	if m.raw != nil {
		found, ok := e.match(m.raw.S1(), m.raw.S2(), m.raw.Promo())
		if !ok {
			return fmt.Errorf("%w: %s", ErrIllegalMove, m.UCI())
		}
		e.push(found)
		return nil
	}
	found, err := e.find(m.Spec())
	if err != nil {
		return err
	}
	e.push(found)
	return nil
}

// Undo takes back the most recent move
func (e *Engine) Undo() (Move, bool) {
	if len(e.stack) == 0 {
		return Move{}, false
	}
	top := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	e.pos = top.pos
	undone := e.describe(top.pos, top.move)
	return undone, true
}

func (e *Engine) Turn() core.Color {
	return fromChessColor(e.pos.Turn())
}

// InCheck reports whether the side to move is in check. After a move the
// library's check tag answers; at the loaded position it is worked out once
// in FromFEN.
func (e *Engine) InCheck() bool {
	if n := len(e.stack); n > 0 {
		return e.stack[n-1].move.HasTag(chess.Check)
	}
	return e.rootCheck || e.pos.Status() == chess.Checkmate
}

// Status classifies the current position; draw rules are evaluated by the
// library over the full move history.
func (e *Engine) Status() Status {
	switch e.pos.Status() {
	case chess.Checkmate:
		return StatusCheckmate
	case chess.Stalemate:
		return StatusStalemate
	}

	g := e.replay()
	switch g.Method() {
	case chess.InsufficientMaterial:
		return StatusInsufficientMaterial
	case chess.FivefoldRepetition:
		return StatusThreefoldRepetition
	case chess.SeventyFiveMoveRule:
		return StatusFiftyMoveRule
	}
	for _, method := range g.EligibleDraws() {
		switch method {
		case chess.ThreefoldRepetition:
			return StatusThreefoldRepetition
		case chess.FiftyMoveRule:
			return StatusFiftyMoveRule
		}
	}
	return StatusOngoing
}

func (e *Engine) IsGameOver() bool {
	return e.Status() != StatusOngoing
}

// Winner returns the winning color after checkmate
func (e *Engine) Winner() (core.Color, bool) {
	if e.pos.Status() != chess.Checkmate {
		return 0, false
	}
	return core.OppositeColor(e.Turn()), true
}

func (e *Engine) Board() Snapshot {
	return snapshotOf(e.pos)
}

func (e *Engine) FEN() string {
	return e.pos.String()
}

func (e *Engine) InitialFEN() string {
	return e.initialFEN
}

// Len returns the number of moves played since the initial position
func (e *Engine) Len() int {
	return len(e.stack)
}

// History returns the played moves with SAN filled in
func (e *Engine) History() []Move {
	moves := make([]Move, 0, len(e.stack))
	for _, f := range e.stack {
		m := e.describe(f.pos, f.move)
		m.SAN = chess.AlgebraicNotation{}.Encode(f.pos, f.move)
		moves = append(moves, m)
	}
	return moves
}

// PGN returns the game transcript produced by the library
func (e *Engine) PGN() string {
	g := e.replay()
	if e.initialFEN != StartingFEN {
		g.AddTagPair("SetUp", "1")
		g.AddTagPair("FEN", e.initialFEN)
	}
	return g.String()
}

func (e *Engine) push(m *chess.Move) {
	e.stack = append(e.stack, frame{pos: e.pos, move: m})
	e.pos = e.pos.Update(m)
}

func (e *Engine) find(spec MoveSpec) (*chess.Move, error) {
	from, err := parseSquare(spec.From)
	if err != nil {
		return nil, err
	}
	to, err := parseSquare(spec.To)
	if err != nil {
		return nil, err
	}
	if m, ok := e.match(from, to, toChessPieceType(spec.Promotion)); ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s%s%s", ErrIllegalMove, spec.From, spec.To, spec.Promotion)
}

func (e *Engine) match(from, to chess.Square, promo chess.PieceType) (*chess.Move, bool) {
	for _, m := range e.pos.ValidMoves() {
		if m.S1() == from && m.S2() == to && m.Promo() == promo {
			return m, true
		}
	}
	return nil, false
}

func (e *Engine) describe(pos *chess.Position, m *chess.Move) Move {
	piece := pos.Board().Piece(m.S1())
	return Move{
		From:      m.S1().String(),
		To:        m.S2().String(),
		Promotion: fromChessPieceType(m.Promo()),
		Piece:     fromChessPieceType(piece.Type()),
		Color:     fromChessColor(pos.Turn()),
		Capture:   m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
		Check:     m.HasTag(chess.Check),
		raw:       m,
	}
}

// replay rebuilds a library game from the initial position so draw rules
// that depend on history can be evaluated
func (e *Engine) replay() *chess.Game {
	opt, err := chess.FEN(e.initialFEN)
	if err != nil {
		panic(fmt.Sprintf("rules: stored initial FEN rejected: %v", err))
	}
	g := chess.NewGame(opt)
	for _, f := range e.stack {
		if err := g.Move(f.move); err != nil {
			break
		}
	}
	return g
}
