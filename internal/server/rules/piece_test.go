package rules

import (
	"strings"
	"testing"

	"webchess/internal/server/core"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotOrientation(t *testing.T) {
	b := New().Board()

	assert.Equal(t, Piece{Color: core.ColorBlack, Type: King}, b[0][4])
	assert.Equal(t, Piece{Color: core.ColorWhite, Type: King}, b[7][4])
	assert.Equal(t, Piece{Color: core.ColorWhite, Type: King}, b.At("e1"))
	assert.Equal(t, Piece{Color: core.ColorBlack, Type: Pawn}, b.At("a7"))
	assert.True(t, b.At("e4").IsEmpty())
	assert.True(t, b.At("bogus").IsEmpty())
}

func TestSnapshotLetters(t *testing.T) {
	letters := New().Board().Letters()

	assert.Equal(t, [8]string{"r", "n", "b", "q", "k", "b", "n", "r"}, letters[0])
	assert.Equal(t, [8]string{"R", "N", "B", "Q", "K", "B", "N", "R"}, letters[7])
	assert.Equal(t, [8]string{}, letters[4])
}

func TestSnapshotASCII(t *testing.T) {
	lines := strings.Split(New().Board().ASCII(), "\n")

	assert.Len(t, lines, 10)
	assert.Equal(t, "  a b c d e f g h", lines[0])
	assert.Equal(t, "8 r n b q k b n r  8", lines[1])
	assert.Equal(t, "4 . . . . . . . .  4", lines[5])
	assert.Equal(t, "1 R N B Q K B N R  1", lines[8])
}

func TestValidSquare(t *testing.T) {
	assert.True(t, ValidSquare("a1"))
	assert.True(t, ValidSquare("h8"))
	assert.False(t, ValidSquare("i1"))
	assert.False(t, ValidSquare("a0"))
	assert.False(t, ValidSquare("a10"))
}
