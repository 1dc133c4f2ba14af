// Package cli is the terminal front end for playing against the computer
package cli

import (
	"fmt"
	"io"
	"strings"

	"webchess/internal/server/core"
	"webchess/internal/server/game"
	"webchess/internal/server/rules"
)

type ColorTheme string

const (
	ThemeOff   ColorTheme = "off"
	ThemeBrown ColorTheme = "brown"
	ThemeGreen ColorTheme = "green"
	ThemeGray  ColorTheme = "gray"
)

type themeColors struct {
	lightBg string
	darkBg  string
	white   string
	black   string
	reset   string
}

var themes = map[ColorTheme]themeColors{
	ThemeOff: {},
	ThemeBrown: {
		lightBg: "\033[48;5;230m", // Beige
		darkBg:  "\033[48;5;94m",  // Brown
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
	ThemeGreen: {
		lightBg: "\033[48;5;157m",
		darkBg:  "\033[48;5;22m",
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
	ThemeGray: {
		lightBg: "\033[48;5;251m",
		darkBg:  "\033[48;5;240m",
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
}

// View renders games and messages to a terminal or plain writer
type View struct {
	output io.Writer
	theme  ColorTheme
}

func NewView(output io.Writer, theme ColorTheme) *View {
	if _, ok := themes[theme]; !ok {
		theme = ThemeOff
	}
	return &View{output: output, theme: theme}
}

func (v *View) SetTheme(theme ColorTheme) error {
	if _, ok := themes[theme]; !ok {
		return fmt.Errorf("invalid theme: %s (use: off, brown, green, gray)", theme)
	}
	v.theme = theme
	return nil
}

func (v *View) Theme() ColorTheme {
	return v.theme
}

func (v *View) ShowMessage(msg string) {
	fmt.Fprintln(v.output, msg)
}

func (v *View) ShowError(err error) {
	v.ShowMessage(fmt.Sprintf("Error: %v", err))
}

// DisplayBoard draws the board, from Black's side when flipped
func (v *View) DisplayBoard(b rules.Snapshot, flipped bool) {
	theme := themes[v.theme]
	files := "a b c d e f g h"
	if flipped {
		files = "h g f e d c b a"
	}

	var sb strings.Builder
	sb.WriteString("\n  " + files + "\n")

	for i := 0; i < 8; i++ {
		r := i
		if flipped {
			r = 7 - i
		}
		fmt.Fprintf(&sb, "%d ", 8-r)
		for j := 0; j < 8; j++ {
			f := j
			if flipped {
				f = 7 - j
			}
			piece := b[r][f]
			letter := "."
			if !piece.IsEmpty() {
				letter = string(piece.Letter())
			}

			if v.theme == ThemeOff {
				sb.WriteString(letter + " ")
				continue
			}

			bg := theme.darkBg
			if (r+f)%2 == 0 {
				bg = theme.lightBg
			}
			if piece.IsEmpty() {
				fmt.Fprintf(&sb, "%s  %s", bg, theme.reset)
				continue
			}
			fg := theme.black
			if piece.Color == core.ColorWhite {
				fg = theme.white
			}
			fmt.Fprintf(&sb, "%s%s%s %s", bg, fg, letter, theme.reset)
		}
		fmt.Fprintf(&sb, " %d\n", 8-r)
	}
	sb.WriteString("  " + files + "\n")

	v.ShowMessage(sb.String())
}

// ShowStatus prints the status line of a game snapshot
func (v *View) ShowStatus(snap game.Snapshot) {
	v.ShowMessage(snap.Status)
}

func (v *View) ShowHelp() {
	v.ShowMessage(`Commands:
  new [white|black]  - Start a new game, playing the given color (default white)
  resume <FEN>       - Resume from a position, you play the side to move
  <move>             - Make a move in UCI form (e.g. e2e4, e7e8q)
  moves [square]     - List legal moves, optionally from one square
  undo [count]       - Undo your last move and the computer reply, or count moves
  mode random|search - Set how the computer picks its move
  depth <n>          - Set the search depth in plies (1-4)
  flip               - Flip the board
  color <theme>      - Set board color theme (off|brown|green|gray)
  fen                - Show the current FEN
  pgn                - Show the game in PGN
  history            - Show the move list
  help/?             - Show this help message
  quit/exit          - Exit the program`)
}

func (v *View) ShowWelcome() {
	v.ShowMessage("Welcome to Chess!")
	v.ShowMessage("Type 'new' to play White against the computer, 'new black' to play Black, 'help' for all commands.")
	v.ShowMessage("Example: 'resume 4k3/8/8/8/8/8/8/4K2R w K - 0 1' to start from a puzzle.")
	v.ShowMessage("")
}

// ShowHistory prints SAN moves in numbered pairs
func (v *View) ShowHistory(snap game.Snapshot) {
	v.ShowMessage(fmt.Sprintf("Starting FEN: %s", snap.InitialFEN))

	// A game resumed with Black to move starts mid-pair
	offset := 0
	if len(strings.Fields(snap.InitialFEN)) > 1 && strings.Fields(snap.InitialFEN)[1] == "b" {
		offset = 1
	}
	sans := append(make([]string, offset), snap.SAN...)
	if offset == 1 {
		sans[0] = "..."
	}

	for i := 0; i < len(sans); i += 2 {
		line := fmt.Sprintf("%d. %s", i/2+1, sans[i])
		if i+1 < len(sans) {
			line += " " + sans[i+1]
		}
		v.ShowMessage(line)
	}
	v.ShowMessage(fmt.Sprintf("Current FEN: %s", snap.FEN))
	v.ShowMessage(fmt.Sprintf("Game state: %s", snap.State))
}

// ShowComputerMove prints a computer move and, for searches, its evaluation
func (v *View) ShowComputerMove(result *game.MoveResult, mode core.AIMode) {
	if mode == core.ModeSearch {
		v.ShowMessage(fmt.Sprintf("Computer (%s): %s  [depth %d, score %+d, %d nodes]",
			result.PlayerColor.Name(), result.SAN, result.Depth, result.Score, result.Nodes))
		return
	}
	v.ShowMessage(fmt.Sprintf("Computer (%s): %s  [random]", result.PlayerColor.Name(), result.SAN))
}

func (v *View) ShowGameOver(status string) {
	v.ShowMessage(fmt.Sprintf("\nGame Over: %s", status))
	v.ShowMessage("Start a new game with 'new' or 'resume', or 'undo' to take moves back.")
}
