package core

import (
	"fmt"

	"github.com/google/uuid"
)

type PlayerType int

const (
	PlayerHuman PlayerType = iota + 1
	PlayerComputer
)

func (t PlayerType) String() string {
	switch t {
	case PlayerHuman:
		return "human"
	case PlayerComputer:
		return "computer"
	default:
		return "unknown"
	}
}

// AIMode selects how a computer player picks its move
type AIMode string

const (
	ModeRandom AIMode = "random"
	ModeSearch AIMode = "search"
)

// Search depth bounds in plies
const (
	DefaultDepth = 2
	MaxDepth     = 4
)

// Player is the complete game entity with all state
type Player struct {
	ID    string     `json:"id"`
	Color Color      `json:"color"`
	Type  PlayerType `json:"type"`
	Mode  AIMode     `json:"mode,omitempty"`  // Only for computer
	Depth int        `json:"depth,omitempty"` // Only for computer in search mode
}

// IsComputer reports whether the player is driven by the move selector
func (p *Player) IsComputer() bool {
	return p != nil && p.Type == PlayerComputer
}

// PlayerConfig for API requests and configuration
type PlayerConfig struct {
	Type  PlayerType `json:"type" validate:"required,oneof=1 2"`
	Mode  AIMode     `json:"mode,omitempty" validate:"omitempty,oneof=random search"`
	Depth int        `json:"depth,omitempty" validate:"omitempty,min=1,max=4"`
}

// PlayersResponse for API responses
type PlayersResponse struct {
	White *Player `json:"white"`
	Black *Player `json:"black"`
}

// NewPlayer creates a Player from PlayerConfig, filling computer defaults
func NewPlayer(config PlayerConfig, color Color) *Player {
	player := &Player{
		ID:    uuid.New().String(),
		Color: color,
		Type:  config.Type,
	}

	if config.Type == PlayerComputer {
		player.Mode = config.Mode
		if player.Mode == "" {
			player.Mode = ModeSearch
		}
		if player.Mode == ModeSearch {
			player.Depth = config.Depth
			if player.Depth <= 0 {
				player.Depth = DefaultDepth
			}
		}
	}

	return player
}

type Color byte

const (
	ColorWhite Color = iota + 1
	ColorBlack
)

func (c Color) String() string {
	switch c {
	case ColorWhite:
		return "w"
	case ColorBlack:
		return "b"
	default:
		return "-"
	}
}

// Name returns the capitalized color name used in status lines
func (c Color) Name() string {
	if c == ColorWhite {
		return "White"
	}
	return "Black"
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	switch string(text) {
	case "w", "white":
		*c = ColorWhite
	case "b", "black":
		*c = ColorBlack
	default:
		return fmt.Errorf("invalid color %q", text)
	}
	return nil
}

func OppositeColor(c Color) Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}
