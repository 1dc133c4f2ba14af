package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"webchess/internal/cli"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("chess", pflag.ContinueOnError)
	theme := fs.String("theme", "", "board color theme: off, brown, green, gray (default brown on a terminal)")
	historyFile := fs.String("history-file", defaultHistoryFile(), "readline history file")
	debug := fs.Bool("debug", false, "log search details to stderr")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := zerolog.WarnLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	selected := cli.ColorTheme(*theme)
	if selected == "" {
		selected = cli.ThemeOff
		if interactive {
			selected = cli.ThemeBrown
		}
	}

	view := cli.NewView(os.Stdout, cli.ThemeOff)
	if err := view.SetTheme(selected); err != nil {
		return err
	}
	// Escape codes would end up in redirected output
	if !interactive {
		_ = view.SetTheme(cli.ThemeOff)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     *historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	view.ShowWelcome()
	return cli.New(view, logger).Run(rl)
}

func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "webchess_history")
}
