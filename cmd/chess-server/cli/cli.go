// Package cli implements the "chess-server db" maintenance commands
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"webchess/internal/server/core"
	"webchess/internal/server/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Run is the entry point for the database mini-app
func Run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, delete, query, moves")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:], out)
	case "delete":
		return runDelete(args[1:], out)
	case "query":
		return runQuery(args[1:], out)
	case "moves":
		return runMoves(args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

// openStore parses the shared --path flag plus any extra flags and opens the database
func openStore(name string, args []string, out io.Writer, extra func(*pflag.FlagSet)) (*storage.Store, string, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("path", "", "Database file path (required)")
	if extra != nil {
		extra(fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	if *path == "" {
		return nil, "", errors.New("database path required")
	}

	store, err := storage.NewStore(*path, false, zerolog.Nop())
	if err != nil {
		return nil, "", fmt.Errorf("failed to open store: %w", err)
	}
	return store, *path, nil
}

func runInit(args []string, out io.Writer) error {
	store, path, err := openStore("init", args, out, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Fprintf(out, "Database initialized at: %s\n", path)
	return nil
}

func runDelete(args []string, out io.Writer) error {
	store, path, err := openStore("delete", args, out, nil)
	if err != nil {
		return err
	}

	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Fprintf(out, "Database deleted: %s\n", path)
	return nil
}

func runQuery(args []string, out io.Writer) error {
	var gameID, playerID string
	store, _, err := openStore("query", args, out, func(fs *pflag.FlagSet) {
		fs.StringVar(&gameID, "gameId", "", "Game ID to filter (optional, * for all)")
		fs.StringVar(&playerID, "playerId", "", "Player ID to filter (optional, * for all)")
	})
	if err != nil {
		return err
	}
	defer store.Close()

	games, err := store.QueryGames(gameID, playerID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(games) == 0 {
		fmt.Fprintln(out, "No games found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Game ID\tWhite\tBlack\tResult\tStart Time")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, g := range games {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			g.GameID,
			describePlayer(g.WhiteType, g.WhiteMode, g.WhiteDepth),
			describePlayer(g.BlackType, g.BlackMode, g.BlackDepth),
			g.Result,
			g.StartTimeUTC.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d game(s)\n", len(games))
	return nil
}

func runMoves(args []string, out io.Writer) error {
	var gameID string
	store, _, err := openStore("moves", args, out, func(fs *pflag.FlagSet) {
		fs.StringVar(&gameID, "gameId", "", "Game ID (required)")
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if gameID == "" {
		return errors.New("game ID required")
	}

	moves, err := store.QueryMoves(gameID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(moves) == 0 {
		fmt.Fprintln(out, "No moves found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tColor\tUCI\tSAN\tFEN After")
	for _, m := range moves {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", m.MoveNumber, m.PlayerColor, m.MoveUCI, m.MoveSAN, m.FENAfterMove)
	}
	return w.Flush()
}

func describePlayer(playerType int, mode string, depth int) string {
	t := core.PlayerType(playerType)
	if t != core.PlayerComputer {
		return t.String()
	}
	if mode == string(core.ModeSearch) {
		return fmt.Sprintf("computer (%s d%d)", mode, depth)
	}
	return fmt.Sprintf("computer (%s)", mode)
}
