package service

import (
	"fmt"
	"time"

	"webchess/internal/server/core"
	"webchess/internal/server/game"
	"webchess/internal/server/rules"
	"webchess/internal/server/storage"

	"github.com/google/uuid"
)

// CreateGame registers a new game with pre-constructed players
func (s *Service) CreateGame(id string, whitePlayer, blackPlayer *core.Player, initialFEN string) (*game.Game, error) {
	g, err := game.FromFEN(initialFEN, whitePlayer, blackPlayer)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[id]; exists {
		return nil, fmt.Errorf("game %s already exists", id)
	}

	s.games[id] = g
	if g.HasComputer() {
		s.computerGames.Add(1)
	}

	if s.store != nil {
		record := gameRecord(id, g.InitialFEN(), whitePlayer, blackPlayer)
		record.StartTimeUTC = g.CreatedAt()
		if state := g.State(); state.IsFinished() {
			record.Result = resultOf(state)
		}
		s.store.RecordNewGame(record)
	}

	s.logger.Debug().
		Str("game", id).
		Str("white", whitePlayer.Type.String()).
		Str("black", blackPlayer.Type.String()).
		Msg("game created")

	return g, nil
}

// UpdatePlayers replaces players in an existing game
func (s *Service) UpdatePlayers(gameID string, whitePlayer, blackPlayer *core.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[gameID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}

	had := g.HasComputer()
	g.UpdatePlayers(whitePlayer, blackPlayer)
	switch has := g.HasComputer(); {
	case has && !had:
		s.computerGames.Add(1)
	case had && !has:
		s.computerGames.Add(-1)
	}

	if s.store != nil {
		s.store.UpdatePlayers(gameRecord(gameID, "", whitePlayer, blackPlayer))
	}

	return nil
}

// GetGame retrieves a game by ID
func (s *Service) GetGame(gameID string) (*game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return g, nil
}

// GenerateGameID creates a new unique game ID
func (s *Service) GenerateGameID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for {
		id := uuid.New().String()
		if _, exists := s.games[id]; !exists {
			return id
		}
	}
}

// ApplyMove plays a human move and records it
func (s *Service) ApplyMove(gameID, moveUCI string) (*game.MoveResult, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return nil, err
	}

	result, err := g.ApplyMove(moveUCI)
	if err != nil {
		return nil, err
	}

	s.afterMove(gameID, g, result)
	return result, nil
}

// ApplyComputerMove plays a searched move if the game has not changed since
// the search started
func (s *Service) ApplyComputerMove(gameID string, m rules.Move, fromMoveCount, score, depth, nodes int) (*game.MoveResult, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return nil, err
	}

	result, err := g.ApplyComputerMove(m, fromMoveCount, score, depth, nodes)
	if err != nil {
		return nil, err
	}

	s.afterMove(gameID, g, result)
	return result, nil
}

// afterMove notifies waiters and persists the move and any result
func (s *Service) afterMove(gameID string, g *game.Game, result *game.MoveResult) {
	moveCount := g.MoveCount()
	s.waiter.NotifyGame(gameID, moveCount)

	if s.store == nil {
		return
	}

	now := time.Now().UTC()
	s.store.RecordMove(storage.MoveRecord{
		GameID:       gameID,
		MoveNumber:   moveCount,
		MoveUCI:      result.Move,
		MoveSAN:      result.SAN,
		FENAfterMove: g.CurrentFEN(),
		PlayerColor:  result.PlayerColor.String(),
		MoveTimeUTC:  now,
	})
	if result.GameState.IsFinished() {
		s.store.RecordResult(gameID, resultOf(result.GameState), now)
	}
}

// UpdateGameState sets the game state, notifying waiters when it is not transient
func (s *Service) UpdateGameState(gameID string, state core.State) error {
	g, err := s.GetGame(gameID)
	if err != nil {
		return err
	}

	g.SetState(state)

	if state != core.StateOngoing && state != core.StatePending {
		s.waiter.NotifyAll(gameID)
	}

	return nil
}

// MarkStuck moves a pending game to stuck and wakes its waiters
func (s *Service) MarkStuck(gameID string) bool {
	g, err := s.GetGame(gameID)
	if err != nil {
		return false
	}
	if !g.CompareAndSetState(core.StatePending, core.StateStuck) {
		return false
	}
	s.waiter.NotifyAll(gameID)
	return true
}

// UndoMoves removes the specified number of moves from game history
func (s *Service) UndoMoves(gameID string, count int) (int, error) {
	g, err := s.GetGame(gameID)
	if err != nil {
		return 0, err
	}

	remaining, err := g.UndoMoves(count)
	if err != nil {
		return 0, err
	}

	s.waiter.NotifyGame(gameID, remaining)

	if s.store != nil {
		s.store.DeleteUndoneMoves(gameID, remaining)
	}

	return remaining, nil
}

// DeleteGame removes a game from memory
func (s *Service) DeleteGame(gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[gameID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}

	// Wake waiters before the game disappears
	s.waiter.RemoveGame(gameID)

	if g.HasComputer() {
		s.computerGames.Add(-1)
	}
	delete(s.games, gameID)
	return nil
}

func gameRecord(id, initialFEN string, white, black *core.Player) storage.GameRecord {
	return storage.GameRecord{
		GameID:        id,
		InitialFEN:    initialFEN,
		WhitePlayerID: white.ID,
		WhiteType:     int(white.Type),
		WhiteMode:     string(white.Mode),
		WhiteDepth:    white.Depth,
		BlackPlayerID: black.ID,
		BlackType:     int(black.Type),
		BlackMode:     string(black.Mode),
		BlackDepth:    black.Depth,
	}
}

func resultOf(state core.State) string {
	switch state {
	case core.StateWhiteWins:
		return storage.ResultWhiteWin
	case core.StateBlackWins:
		return storage.ResultBlackWin
	case core.StateDraw, core.StateStalemate:
		return storage.ResultDraw
	default:
		return storage.ResultOngoing
	}
}
