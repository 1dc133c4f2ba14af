package search

import (
	"webchess/internal/server/core"
	"webchess/internal/server/rules"
)

// Piece values in centipawns. The king value only keeps kings from being
// traded in the sum; legal play never captures one.
var pieceValues = map[rules.PieceType]int{
	rules.Pawn:   100,
	rules.Knight: 320,
	rules.Bishop: 330,
	rules.Rook:   500,
	rules.Queen:  900,
	rules.King:   20000,
}

// Evaluate returns the material balance of a board from White's point of view
func Evaluate(b rules.Snapshot) int {
	score := 0
	for r := range b {
		for _, p := range b[r] {
			if p.IsEmpty() {
				continue
			}
			if p.Color == core.ColorWhite {
				score += pieceValues[p.Type]
			} else {
				score -= pieceValues[p.Type]
			}
		}
	}
	return score
}
