package core

// Request types

type CreateGameRequest struct {
	White PlayerConfig `json:"white" validate:"required"`
	Black PlayerConfig `json:"black" validate:"required"`
	FEN   string       `json:"fen,omitempty" validate:"omitempty,max=100"`
}

type ConfigurePlayersRequest struct {
	White PlayerConfig `json:"white" validate:"required"`
	Black PlayerConfig `json:"black" validate:"required"`
}

type MoveRequest struct {
	Move string `json:"move" validate:"required,min=4,max=5"` // "cccc" for computer move, 4-5 chars for UCI moves
}

type UndoRequest struct {
	Count int `json:"count,omitempty" validate:"omitempty,min=1,max=300"` // 0 picks the default for the game's players
}

// Response types

type GameResponse struct {
	GameID   string          `json:"gameId"`
	FEN      string          `json:"fen"`
	PGN      string          `json:"pgn"`
	Turn     string          `json:"turn"`   // "w" or "b"
	State    string          `json:"state"`  // "ongoing", "white wins", etc
	Status   string          `json:"status"` // Human readable line, e.g. "White to move - in check"
	InCheck  bool            `json:"inCheck"`
	Moves    []string        `json:"moves"` // UCI
	SAN      []string        `json:"san"`
	Players  PlayersResponse `json:"players"`
	LastMove *MoveInfo       `json:"lastMove,omitempty"`
}

type MoveInfo struct {
	Move        string `json:"move"`
	SAN         string `json:"san,omitempty"`
	PlayerColor string `json:"playerColor"` // "w" or "b"
	Score       int    `json:"score,omitempty"`
	Depth       int    `json:"depth,omitempty"`
	Nodes       int    `json:"nodes,omitempty"`
}

type BoardResponse struct {
	FEN     string       `json:"fen"`
	Board   string       `json:"board"`   // ASCII representation
	Squares [8][8]string `json:"squares"` // Row 0 is rank 8, "" for empty, "P"/"p" style piece letters
	Turn    string       `json:"turn"`
	Status  string       `json:"status"`
	InCheck bool         `json:"inCheck"`
}

type LegalMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	UCI       string `json:"uci"`
}

type LegalMovesResponse struct {
	Square string      `json:"square,omitempty"`
	Moves  []LegalMove `json:"moves"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
