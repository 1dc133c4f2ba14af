package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"webchess/internal/server/core"
	"webchess/internal/server/game"
	"webchess/internal/server/rules"
	"webchess/internal/server/search"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var errNoGame = errors.New("no active game, use 'new' or 'resume'")

// LineReader is the part of a readline instance the loop uses
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Handler runs a local game between the user and the computer
type Handler struct {
	view     *View
	selector *search.Selector
	logger   zerolog.Logger

	game    *game.Game
	human   core.Color
	mode    core.AIMode
	depth   int
	flipped bool
}

func New(view *View, logger zerolog.Logger) *Handler {
	return &Handler{
		view:     view,
		selector: search.NewSelector(search.WithLogger(logger)),
		logger:   logger,
		human:    core.ColorWhite,
		mode:     core.ModeSearch,
		depth:    core.DefaultDepth,
	}
}

// Run reads commands until quit or end of input
func (h *Handler) Run(rl LineReader) error {
	for {
		rl.SetPrompt(h.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if quit := h.Execute(line); quit {
			return nil
		}
	}
}

func (h *Handler) prompt() string {
	if h.game == nil {
		return "> "
	}
	return fmt.Sprintf("[%s]> ", h.game.NextTurnColor())
}

// Execute runs one input line and reports whether the user asked to quit
func (h *Handler) Execute(line string) bool {
	cmd := ParseCommand(line)

	var err error
	switch cmd.Type {
	case CmdNone:
		return false
	case CmdQuit:
		h.view.ShowMessage("Goodbye!")
		return true
	case CmdHelp:
		h.view.ShowHelp()
	case CmdNew:
		err = h.handleNew(cmd.Args)
	case CmdResume:
		err = h.handleResume(cmd.Args)
	case CmdMove:
		err = h.handleMove(cmd.Args[0])
	case CmdMoves:
		err = h.handleMoves(cmd.Args)
	case CmdUndo:
		err = h.handleUndo(cmd.Args)
	case CmdMode:
		err = h.handleMode(cmd.Args)
	case CmdDepth:
		err = h.handleDepth(cmd.Args)
	case CmdFlip:
		h.flipped = !h.flipped
		err = h.showBoard()
	case CmdColor:
		err = h.handleColor(cmd.Args)
	case CmdFEN:
		err = h.withGame(func(g *game.Game) { h.view.ShowMessage(g.CurrentFEN()) })
	case CmdPGN:
		err = h.withGame(func(g *game.Game) { h.view.ShowMessage(g.PGN()) })
	case CmdHistory:
		err = h.withGame(func(g *game.Game) { h.view.ShowHistory(g.Snapshot()) })
	}

	if err != nil {
		h.view.ShowError(err)
	}
	return false
}

func (h *Handler) withGame(fn func(g *game.Game)) error {
	if h.game == nil {
		return errNoGame
	}
	fn(h.game)
	return nil
}

func (h *Handler) handleNew(args []string) error {
	human := core.ColorWhite
	if len(args) > 0 {
		if err := human.UnmarshalText([]byte(strings.ToLower(args[0]))); err != nil {
			return fmt.Errorf("%w (use: white, black)", err)
		}
	}

	h.human = human
	h.flipped = human == core.ColorBlack
	h.game = game.New(h.players(human))
	h.view.ShowMessage(fmt.Sprintf("New game: you play %s against the computer (%s).", human.Name(), h.describeComputer()))
	return h.afterChange()
}

func (h *Handler) handleResume(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: resume <FEN>")
	}
	fen := strings.Join(args, " ")

	e, err := rules.FromFEN(fen)
	if err != nil {
		return err
	}
	white, black := h.players(e.Turn())
	g, err := game.FromFEN(fen, white, black)
	if err != nil {
		return err
	}

	h.human = e.Turn()
	h.flipped = h.human == core.ColorBlack
	h.game = g
	h.view.ShowMessage(fmt.Sprintf("Resumed: you play %s.", h.human.Name()))
	return h.afterChange()
}

func (h *Handler) handleMove(uci string) error {
	if h.game == nil {
		return errNoGame
	}
	if state := h.game.State(); state.IsFinished() {
		return fmt.Errorf("game is over (%s)", state)
	}
	if h.game.NextTurnColor() != h.human {
		return errors.New("not your turn")
	}

	if _, err := h.game.ApplyMove(strings.ToLower(uci)); err != nil {
		return err
	}
	return h.afterChange()
}

func (h *Handler) handleMoves(args []string) error {
	if h.game == nil {
		return errNoGame
	}
	square := ""
	if len(args) > 0 {
		square = strings.ToLower(args[0])
	}

	moves, err := h.game.LegalMoves(square)
	if err != nil {
		return err
	}
	if len(moves) == 0 {
		h.view.ShowMessage("No legal moves")
		return nil
	}
	h.view.ShowMessage(strings.Join(lo.Map(moves, func(m rules.Move, _ int) string {
		return fmt.Sprintf("%s (%s)", m.UCI(), m.SAN)
	}), ", "))
	return nil
}

// handleUndo takes back the user's last move together with the computer
// reply, so the user is to move again
func (h *Handler) handleUndo(args []string) error {
	if h.game == nil {
		return errNoGame
	}
	available := h.game.MoveCount()
	if available == 0 {
		return errors.New("no moves to undo")
	}

	count := 2
	if h.game.NextTurnColor() != h.human {
		count = 1
	}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid undo count: %s", args[0])
		}
		count = n
	}
	count = min(count, available)

	remaining, err := h.game.UndoMoves(count)
	if err != nil {
		return err
	}
	h.view.ShowMessage(fmt.Sprintf("Undid %d move(s), %d remaining.", count, remaining))
	return h.afterChange()
}

func (h *Handler) handleMode(args []string) error {
	if len(args) == 0 {
		h.view.ShowMessage(fmt.Sprintf("Computer plays %s", h.describeComputer()))
		return nil
	}
	mode := core.AIMode(strings.ToLower(args[0]))
	if mode != core.ModeRandom && mode != core.ModeSearch {
		return fmt.Errorf("invalid mode: %s (use: random, search)", args[0])
	}
	h.mode = mode
	h.updateComputer()
	h.view.ShowMessage(fmt.Sprintf("Computer plays %s", h.describeComputer()))
	return nil
}

func (h *Handler) handleDepth(args []string) error {
	if len(args) == 0 {
		h.view.ShowMessage(fmt.Sprintf("Search depth: %d", h.depth))
		return nil
	}
	depth, err := strconv.Atoi(args[0])
	if err != nil || depth < 1 || depth > core.MaxDepth {
		return fmt.Errorf("invalid depth: %s (use: 1-%d)", args[0], core.MaxDepth)
	}
	h.depth = depth
	h.mode = core.ModeSearch
	h.updateComputer()
	h.view.ShowMessage(fmt.Sprintf("Computer plays %s", h.describeComputer()))
	return nil
}

func (h *Handler) handleColor(args []string) error {
	if len(args) == 0 {
		h.view.ShowMessage(fmt.Sprintf("Current theme: %s", h.view.Theme()))
		return nil
	}
	if err := h.view.SetTheme(ColorTheme(strings.ToLower(args[0]))); err != nil {
		return err
	}
	if h.game != nil {
		return h.showBoard()
	}
	return nil
}

func (h *Handler) updateComputer() {
	if h.game == nil {
		return
	}
	h.game.UpdatePlayers(h.players(h.human))
}

func (h *Handler) players(human core.Color) (*core.Player, *core.Player) {
	user := core.PlayerConfig{Type: core.PlayerHuman}
	computer := core.PlayerConfig{Type: core.PlayerComputer, Mode: h.mode, Depth: h.depth}
	if human == core.ColorWhite {
		return core.NewPlayer(user, core.ColorWhite), core.NewPlayer(computer, core.ColorBlack)
	}
	return core.NewPlayer(computer, core.ColorWhite), core.NewPlayer(user, core.ColorBlack)
}

func (h *Handler) describeComputer() string {
	if h.mode == core.ModeRandom {
		return "random moves"
	}
	return fmt.Sprintf("search depth %d", h.depth)
}

// afterChange shows the position and lets the computer reply when it is to move
func (h *Handler) afterChange() error {
	if err := h.showBoard(); err != nil {
		return err
	}
	if h.game.State().IsFinished() || !h.game.NextPlayer().IsComputer() {
		return nil
	}

	result, err := h.computerMove()
	if err != nil {
		return err
	}
	h.view.ShowComputerMove(result, h.mode)
	return h.showBoard()
}

func (h *Handler) computerMove() (*game.MoveResult, error) {
	player := h.game.NextPlayer()
	from := h.game.MoveCount()
	pos := h.game.Engine()

	if !h.game.CompareAndSetState(core.StateOngoing, core.StatePending) {
		return nil, fmt.Errorf("cannot move in state %s", h.game.State())
	}

	res, err := h.selector.Select(pos, search.Config{Mode: player.Mode, Depth: player.Depth})
	if err != nil {
		h.game.CompareAndSetState(core.StatePending, core.StateOngoing)
		h.game.EvaluateState()
		return nil, err
	}

	h.logger.Debug().
		Str("move", res.Move.UCI()).
		Int("score", res.Score).
		Int("nodes", res.Nodes).
		Dur("took", res.Took).
		Msg("computer move")

	result, err := h.game.ApplyComputerMove(res.Move, from, res.Score, res.Depth, res.Nodes)
	if err != nil {
		h.game.CompareAndSetState(core.StatePending, core.StateOngoing)
		return nil, err
	}
	return result, nil
}

func (h *Handler) showBoard() error {
	if h.game == nil {
		return errNoGame
	}
	snap := h.game.Snapshot()
	h.view.DisplayBoard(h.game.Board(), h.flipped)
	if snap.State.IsFinished() {
		h.view.ShowGameOver(snap.Status)
		return nil
	}
	h.view.ShowStatus(snap)
	return nil
}
