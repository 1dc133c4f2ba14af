package cli

import (
	"strings"
)

type CommandType int

const (
	CmdNone CommandType = iota
	CmdNew
	CmdResume
	CmdMove
	CmdMoves
	CmdUndo
	CmdMode
	CmdDepth
	CmdFlip
	CmdColor
	CmdFEN
	CmdPGN
	CmdHistory
	CmdHelp
	CmdQuit
)

type Command struct {
	Type CommandType
	Args []string
}

// ParseCommand maps one input line to a command; unknown words are moves
func ParseCommand(input string) Command {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return Command{Type: CmdNone}
	}

	name := strings.ToLower(parts[0])
	args := parts[1:]

	switch name {
	case "new":
		return Command{Type: CmdNew, Args: args}
	case "resume":
		return Command{Type: CmdResume, Args: args}
	case "moves", "legal":
		return Command{Type: CmdMoves, Args: args}
	case "undo", "u":
		return Command{Type: CmdUndo, Args: args}
	case "mode":
		return Command{Type: CmdMode, Args: args}
	case "depth":
		return Command{Type: CmdDepth, Args: args}
	case "flip":
		return Command{Type: CmdFlip}
	case "color":
		return Command{Type: CmdColor, Args: args}
	case "fen":
		return Command{Type: CmdFEN}
	case "pgn":
		return Command{Type: CmdPGN}
	case "history":
		return Command{Type: CmdHistory}
	case "help", "?":
		return Command{Type: CmdHelp}
	case "quit", "exit", "q":
		return Command{Type: CmdQuit}
	default:
		return Command{Type: CmdMove, Args: []string{name}}
	}
}
