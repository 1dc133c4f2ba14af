package processor

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"webchess/internal/server/core"
	"webchess/internal/server/game"
	"webchess/internal/server/rules"
	"webchess/internal/server/search"
	"webchess/internal/server/service"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	DefaultWorkers           = 2
	DefaultComputerMoveDelay = 250 * time.Millisecond
	DefaultMoveTimeout       = 30 * time.Second
)

type Config struct {
	Workers           int
	ComputerMoveDelay time.Duration // Pause before the computer answers a human move
	MoveTimeout       time.Duration // Per-search limit before the game is marked stuck
}

// Processor handles command execution and coordinates between service and search layers
type Processor struct {
	svc    *service.Service
	queue  *EngineQueue
	cfg    Config
	logger zerolog.Logger
}

// New creates a processor with its own worker pool
func New(svc *service.Service, cfg Config, logger zerolog.Logger) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ComputerMoveDelay < 0 {
		cfg.ComputerMoveDelay = 0
	}
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = DefaultMoveTimeout
	}

	logger = logger.With().Str("component", "processor").Logger()
	selector := search.NewSelector(search.WithLogger(logger))

	return &Processor{
		svc:    svc,
		queue:  NewEngineQueue(cfg.Workers, cfg.MoveTimeout, selector, logger),
		cfg:    cfg,
		logger: logger,
	}
}

func (p *Processor) Execute(cmd Command) ProcessorResponse {
	switch cmd.Type {
	case CmdCreateGame:
		return p.handleCreateGame(cmd)
	case CmdConfigurePlayers:
		return p.handleConfigurePlayers(cmd)
	case CmdGetGame:
		return p.handleGetGame(cmd)
	case CmdMakeMove:
		return p.handleMakeMove(cmd)
	case CmdUndoMove:
		return p.handleUndoMove(cmd)
	case CmdDeleteGame:
		return p.handleDeleteGame(cmd)
	case CmdGetBoard:
		return p.handleGetBoard(cmd)
	case CmdGetLegalMoves:
		return p.handleGetLegalMoves(cmd)
	default:
		return p.errorResponse("unknown command", core.ErrInvalidRequest)
	}
}

// isFENSafe rejects control characters before the FEN reaches the parser
func (p *Processor) isFENSafe(fen string) bool {
	for _, r := range fen {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// isMoveSafe checks UCI shape: [a-h][1-8][a-h][1-8][qrbn]?
func (p *Processor) isMoveSafe(move string) bool {
	if len(move) < 4 || len(move) > 5 {
		return false
	}

	if move[0] < 'a' || move[0] > 'h' ||
		move[1] < '1' || move[1] > '8' ||
		move[2] < 'a' || move[2] > 'h' ||
		move[3] < '1' || move[3] > '8' {
		return false
	}

	if len(move) == 5 {
		if _, ok := rules.ParsePromotion(move[4]); !ok {
			return false
		}
	}

	return true
}

// handleCreateGame creates a new game and triggers computer move if needed
func (p *Processor) handleCreateGame(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.CreateGameRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	hasComputer := args.White.Type == core.PlayerComputer || args.Black.Type == core.PlayerComputer
	if hasComputer && !p.svc.CanCreateComputerGame() {
		return p.errorResponse("too many games with computer players", core.ErrResourceLimit)
	}

	initialFEN := rules.StartingFEN
	if fen := strings.TrimSpace(args.FEN); fen != "" {
		if !p.isFENSafe(fen) {
			return p.errorResponse("invalid FEN characters", core.ErrInvalidFEN)
		}
		initialFEN = fen
	}

	whitePlayer := core.NewPlayer(args.White, core.ColorWhite)
	blackPlayer := core.NewPlayer(args.Black, core.ColorBlack)

	gameID := p.svc.GenerateGameID()
	g, err := p.svc.CreateGame(gameID, whitePlayer, blackPlayer, initialFEN)
	if err != nil {
		if errors.Is(err, rules.ErrInvalidFEN) {
			return p.errorDetails("invalid FEN", core.ErrInvalidFEN, err)
		}
		return p.errorDetails("failed to create game", core.ErrInternalError, err)
	}

	// A computer playing first moves without being asked
	pending := p.scheduleComputerMove(gameID, g, core.StateOngoing, p.cfg.ComputerMoveDelay)

	return ProcessorResponse{
		Success: true,
		Pending: pending,
		Data:    p.buildGameResponse(gameID, g),
	}
}

// handleConfigurePlayers updates player configuration mid-game
func (p *Processor) handleConfigurePlayers(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.ConfigurePlayersRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.errorResponse("game not found", core.ErrGameNotFound)
	}

	// Block configuration changes during computer move
	if g.IsPending() {
		return p.errorResponse("cannot change players while computer is calculating", core.ErrInvalidRequest)
	}

	hasComputer := args.White.Type == core.PlayerComputer || args.Black.Type == core.PlayerComputer
	if hasComputer && !g.HasComputer() && !p.svc.CanCreateComputerGame() {
		return p.errorResponse("too many games with computer players", core.ErrResourceLimit)
	}

	whitePlayer := core.NewPlayer(args.White, core.ColorWhite)
	blackPlayer := core.NewPlayer(args.Black, core.ColorBlack)

	if err = p.svc.UpdatePlayers(cmd.GameID, whitePlayer, blackPlayer); err != nil {
		return p.errorDetails("failed to update players", core.ErrInternalError, err)
	}

	// The side to move may have just been handed to the computer
	pending := p.scheduleComputerMove(cmd.GameID, g, core.StateOngoing, p.cfg.ComputerMoveDelay)

	return ProcessorResponse{
		Success: true,
		Pending: pending,
		Data:    p.buildGameResponse(cmd.GameID, g),
	}
}

// handleGetGame retrieves game state
func (p *Processor) handleGetGame(cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.errorResponse("game not found", core.ErrGameNotFound)
	}

	return ProcessorResponse{
		Success: true,
		Pending: g.IsPending(),
		Data:    p.buildGameResponse(cmd.GameID, g),
	}
}

// handleMakeMove processes human moves and computer move requests
func (p *Processor) handleMakeMove(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.MoveRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.errorResponse("game not found", core.ErrGameNotFound)
	}

	move := strings.ToLower(strings.TrimSpace(args.Move))
	state := g.State()

	switch {
	case state == core.StatePending:
		return p.errorResponse("computer move in progress", core.ErrInvalidRequest)
	case state.IsFinished():
		return p.errorResponse(fmt.Sprintf("game is over: %s", state), core.ErrGameOver)
	case state == core.StateStuck && move != ComputerMoveToken:
		return p.errorResponse("game is stuck, retry the computer move or undo", core.ErrGameOver)
	}

	if move == ComputerMoveToken {
		if !g.NextPlayer().IsComputer() {
			return p.errorResponse("not computer player's turn", core.ErrNotComputerTurn)
		}
		if !p.scheduleComputerMove(cmd.GameID, g, state, 0) {
			return p.errorResponse("computer move already requested", core.ErrInvalidRequest)
		}

		response := p.buildGameResponse(cmd.GameID, g)
		response.LastMove = &core.MoveInfo{
			PlayerColor: g.NextTurnColor().String(),
		}
		return ProcessorResponse{
			Success: true,
			Pending: true,
			Data:    response,
		}
	}

	if g.NextPlayer().IsComputer() {
		return p.errorResponse("not human player's turn", core.ErrNotHumanTurn)
	}

	if !p.isMoveSafe(move) {
		return p.errorResponse("invalid move format", core.ErrInvalidMove)
	}

	result, err := p.svc.ApplyMove(cmd.GameID, move)
	switch {
	case errors.Is(err, rules.ErrIllegalMove):
		return p.errorResponse("illegal move", core.ErrInvalidMove)
	case errors.Is(err, game.ErrNotHumanTurn):
		return p.errorResponse("not human player's turn", core.ErrNotHumanTurn)
	case errors.Is(err, service.ErrGameNotFound):
		return p.errorResponse("game not found", core.ErrGameNotFound)
	case err != nil:
		return p.errorDetails("failed to apply move", core.ErrInternalError, err)
	}

	pending := false
	if !result.GameState.IsFinished() {
		pending = p.scheduleComputerMove(cmd.GameID, g, core.StateOngoing, p.cfg.ComputerMoveDelay)
	}

	response := p.buildGameResponse(cmd.GameID, g)
	response.LastMove = moveInfo(result)

	return ProcessorResponse{
		Success: true,
		Pending: pending,
		Data:    response,
	}
}

// handleUndoMove reverts game state. Without an explicit count a game
// against one computer takes back the computer reply too.
func (p *Processor) handleUndoMove(cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.errorResponse("game not found", core.ErrGameNotFound)
	}

	if g.IsPending() {
		return p.errorResponse("cannot undo while computer move is in progress", core.ErrInvalidRequest)
	}

	available := g.MoveCount()
	if available == 0 {
		return p.errorResponse("no moves to undo", core.ErrInvalidRequest)
	}

	var args core.UndoRequest
	if req, ok := cmd.Args.(core.UndoRequest); ok {
		args = req
	}

	count := args.Count
	if count == 0 {
		count = 1
		if g.ComputerCount() == 1 {
			count = 2
		}
		count = min(count, available)
	}

	if _, err = p.svc.UndoMoves(cmd.GameID, count); err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			return p.errorResponse("game not found", core.ErrGameNotFound)
		}
		return p.errorDetails("cannot undo", core.ErrInvalidRequest, err)
	}

	// Undoing only the computer reply hands the move back to the computer
	pending := p.scheduleComputerMove(cmd.GameID, g, core.StateOngoing, p.cfg.ComputerMoveDelay)

	return ProcessorResponse{
		Success: true,
		Pending: pending,
		Data:    p.buildGameResponse(cmd.GameID, g),
	}
}

// handleDeleteGame removes a game
func (p *Processor) handleDeleteGame(cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.errorResponse("game not found", core.ErrGameNotFound)
	}

	// Only block deletion if actively computing
	if g.IsPending() {
		return p.errorResponse("cannot delete game while computer move is in progress", core.ErrInvalidRequest)
	}

	if err = p.svc.DeleteGame(cmd.GameID); err != nil {
		return p.errorResponse("game not found", core.ErrGameNotFound)
	}

	return ProcessorResponse{
		Success: true,
	}
}

// handleGetBoard returns board visualization
func (p *Processor) handleGetBoard(cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.errorResponse("game not found", core.ErrGameNotFound)
	}

	snap := g.Snapshot()
	board := g.Board()

	return ProcessorResponse{
		Success: true,
		Data: core.BoardResponse{
			FEN:     snap.FEN,
			Board:   board.ASCII(),
			Squares: board.Letters(),
			Turn:    snap.Turn.String(),
			Status:  snap.Status,
			InCheck: snap.InCheck,
		},
	}
}

// handleGetLegalMoves lists legal moves for the side to move
func (p *Processor) handleGetLegalMoves(cmd Command) ProcessorResponse {
	square, _ := cmd.Args.(string)
	square = strings.ToLower(strings.TrimSpace(square))

	g, err := p.svc.GetGame(cmd.GameID)
	if err != nil {
		return p.errorResponse("game not found", core.ErrGameNotFound)
	}

	moves, err := g.LegalMoves(square)
	if err != nil {
		return p.errorDetails("invalid square", core.ErrInvalidSquare, err)
	}

	return ProcessorResponse{
		Success: true,
		Data: core.LegalMovesResponse{
			Square: square,
			Moves: lo.Map(moves, func(m rules.Move, _ int) core.LegalMove {
				lm := core.LegalMove{From: m.From, To: m.To, UCI: m.UCI()}
				if m.Promotion != rules.NoPieceType {
					lm.Promotion = m.Promotion.String()
				}
				return lm
			}),
		},
	}
}

// scheduleComputerMove marks the game pending and starts a search after
// delay when the side to move is a computer. It reports whether a search
// was scheduled.
func (p *Processor) scheduleComputerMove(gameID string, g *game.Game, from core.State, delay time.Duration) bool {
	if !g.NextPlayer().IsComputer() {
		return false
	}
	if !g.CompareAndSetState(from, core.StatePending) {
		return false
	}

	if delay <= 0 {
		p.triggerComputerMove(gameID, g)
	} else {
		time.AfterFunc(delay, func() { p.triggerComputerMove(gameID, g) })
	}
	return true
}

// triggerComputerMove submits a detached copy of the position to the queue
func (p *Processor) triggerComputerMove(gameID string, g *game.Game) {
	player := g.NextPlayer()
	fromCount := g.MoveCount()
	pos := g.Engine()

	err := p.queue.SubmitAsync(gameID, pos, player, func(result EngineResult) {
		p.handleEngineResult(gameID, fromCount, result)
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("game", gameID).Msg("computer move not queued")
		p.svc.MarkStuck(gameID)
	}
}

// handleEngineResult applies a finished search. Results for games that were
// deleted, undone or otherwise changed are discarded.
func (p *Processor) handleEngineResult(gameID string, fromCount int, result EngineResult) {
	g, err := p.svc.GetGame(gameID)
	if err != nil || !g.IsPending() {
		return
	}

	if result.Error != nil {
		if errors.Is(result.Error, search.ErrNoMove) {
			// Nothing to play, settle the state from the position
			g.CompareAndSetState(core.StatePending, core.StateOngoing)
			state, _ := g.EvaluateState()
			_ = p.svc.UpdateGameState(gameID, state)
			return
		}
		p.logger.Error().Err(result.Error).Str("game", gameID).Msg("computer move failed")
		p.svc.MarkStuck(gameID)
		return
	}

	applied, err := p.svc.ApplyComputerMove(gameID, result.Move, fromCount, result.Score, result.Depth, result.Nodes)
	switch {
	case errors.Is(err, game.ErrStale), errors.Is(err, service.ErrGameNotFound):
		return
	case err != nil:
		p.logger.Error().Err(err).Str("game", gameID).Str("move", result.Move.UCI()).Msg("computer move rejected")
		p.svc.MarkStuck(gameID)
		return
	}

	p.logger.Debug().
		Str("game", gameID).
		Str("move", applied.Move).
		Int("score", applied.Score).
		Int("nodes", applied.Nodes).
		Msg("computer moved")

	// Computer against computer keeps going
	if !applied.GameState.IsFinished() {
		p.scheduleComputerMove(gameID, g, core.StateOngoing, p.cfg.ComputerMoveDelay)
	}
}

// buildGameResponse constructs standard game response
func (p *Processor) buildGameResponse(gameID string, g *game.Game) core.GameResponse {
	snap := g.Snapshot()

	resp := core.GameResponse{
		GameID:  gameID,
		FEN:     snap.FEN,
		PGN:     snap.PGN,
		Turn:    snap.Turn.String(),
		State:   snap.State.String(),
		Status:  snap.Status,
		InCheck: snap.InCheck,
		Moves:   snap.Moves,
		SAN:     snap.SAN,
		Players: core.PlayersResponse{
			White: snap.White,
			Black: snap.Black,
		},
	}
	if snap.State == core.StatePending {
		resp.Status = fmt.Sprintf("%s is thinking", snap.Turn.Name())
	}

	// Include last move if available
	if snap.LastResult != nil {
		resp.LastMove = moveInfo(snap.LastResult)
	}

	return resp
}

func moveInfo(result *game.MoveResult) *core.MoveInfo {
	return &core.MoveInfo{
		Move:        result.Move,
		SAN:         result.SAN,
		PlayerColor: result.PlayerColor.String(),
		Score:       result.Score,
		Depth:       result.Depth,
		Nodes:       result.Nodes,
	}
}

// errorResponse creates error response
func (p *Processor) errorResponse(message, code string) ProcessorResponse {
	return ProcessorResponse{
		Success: false,
		Error: &core.ErrorResponse{
			Error: message,
			Code:  code,
		},
	}
}

func (p *Processor) errorDetails(message, code string, err error) ProcessorResponse {
	resp := p.errorResponse(message, code)
	resp.Error.Details = err.Error()
	return resp
}

// Close cleans up resources
func (p *Processor) Close() error {
	return p.queue.Shutdown(5 * time.Second)
}
