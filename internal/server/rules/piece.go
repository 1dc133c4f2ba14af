package rules

import (
	"fmt"
	"strings"

	"webchess/internal/server/core"

	"github.com/notnil/chess"
)

type PieceType int

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// String returns the lowercase piece letter, "" for NoPieceType
func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "p"
	case Knight:
		return "n"
	case Bishop:
		return "b"
	case Rook:
		return "r"
	case Queen:
		return "q"
	case King:
		return "k"
	default:
		return ""
	}
}

// ParsePromotion maps a UCI promotion letter to a piece type
func ParsePromotion(b byte) (PieceType, bool) {
	switch b {
	case 'q':
		return Queen, true
	case 'r':
		return Rook, true
	case 'b':
		return Bishop, true
	case 'n':
		return Knight, true
	default:
		return NoPieceType, false
	}
}

// Piece is one square of a board snapshot; the zero value is an empty square
type Piece struct {
	Color core.Color
	Type  PieceType
}

func (p Piece) IsEmpty() bool {
	return p.Type == NoPieceType
}

// Letter returns the FEN letter of the piece, uppercase for White, 0 if empty
func (p Piece) Letter() byte {
	if p.IsEmpty() {
		return 0
	}
	l := p.Type.String()[0]
	if p.Color == core.ColorWhite {
		return l - ('a' - 'A')
	}
	return l
}

// Snapshot is a read-only 8x8 view of the board.
// Row 0 is rank 8 and column 0 is file a, as a board is drawn for White.
type Snapshot [8][8]Piece

// At returns the piece on an algebraic square, or an empty piece for bad input
func (s Snapshot) At(square string) Piece {
	sq, err := parseSquare(square)
	if err != nil {
		return Piece{}
	}
	return s[7-int(sq.Rank())][int(sq.File())]
}

// Letters returns the snapshot as FEN piece letters, "" for empty squares
func (s Snapshot) Letters() [8][8]string {
	var out [8][8]string
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if l := s[r][f].Letter(); l != 0 {
				out[r][f] = string(l)
			}
		}
	}
	return out
}

// ASCII creates an ASCII representation of the board
func (s Snapshot) ASCII() string {
	var sb strings.Builder
	sb.WriteString("  a b c d e f g h\n")

	for r := 0; r < 8; r++ {
		sb.WriteString(fmt.Sprintf("%d ", 8-r))
		for f := 0; f < 8; f++ {
			if l := s[r][f].Letter(); l != 0 {
				sb.WriteString(fmt.Sprintf("%c ", l))
			} else {
				sb.WriteString(". ")
			}
		}
		sb.WriteString(fmt.Sprintf(" %d\n", 8-r))
	}
	sb.WriteString("  a b c d e f g h")

	return sb.String()
}

func snapshotOf(pos *chess.Position) Snapshot {
	var s Snapshot
	board := pos.Board()
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p := board.Piece(chess.NewSquare(chess.File(f), chess.Rank(7-r)))
			if p == chess.NoPiece {
				continue
			}
			s[r][f] = Piece{Color: fromChessColor(p.Color()), Type: fromChessPieceType(p.Type())}
		}
	}
	return s
}

func fromChessColor(c chess.Color) core.Color {
	if c == chess.Black {
		return core.ColorBlack
	}
	return core.ColorWhite
}

func fromChessPieceType(t chess.PieceType) PieceType {
	switch t {
	case chess.Pawn:
		return Pawn
	case chess.Knight:
		return Knight
	case chess.Bishop:
		return Bishop
	case chess.Rook:
		return Rook
	case chess.Queen:
		return Queen
	case chess.King:
		return King
	default:
		return NoPieceType
	}
}

func toChessPieceType(t PieceType) chess.PieceType {
	switch t {
	case Pawn:
		return chess.Pawn
	case Knight:
		return chess.Knight
	case Bishop:
		return chess.Bishop
	case Rook:
		return chess.Rook
	case Queen:
		return chess.Queen
	case King:
		return chess.King
	default:
		return chess.NoPieceType
	}
}

func parseSquare(s string) (chess.Square, error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return chess.NewSquare(chess.File(s[0]-'a'), chess.Rank(s[1]-'1')), nil
}

// ValidSquare reports whether s names a board square such as "e4"
func ValidSquare(s string) bool {
	_, err := parseSquare(s)
	return err == nil
}
