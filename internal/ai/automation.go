package ai

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrGameNotRegistered = errors.New("game is not registered for automation")
	ErrInvalidConfig     = errors.New("invalid automation config")
)

// Mode tells why a seat is automated.
type Mode string

const (
	// ModeVoluntary is auto-mode the player asked for. It survives
	// disconnects and reconnects and ends only when disabled.
	ModeVoluntary Mode = "voluntary"
	// ModeInvoluntary is a takeover after the player's connection dropped.
	// It ends when the player reconnects.
	ModeInvoluntary Mode = "involuntary"
)

type Personality string

const (
	PersonalityBalanced   Personality = "balanced"
	PersonalityBuilder    Personality = "builder"
	PersonalityTrader     Personality = "trader"
	PersonalityAggressive Personality = "aggressive"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Config tunes one automated seat.
type Config struct {
	Personality Personality `json:"personality"`
	Difficulty  Difficulty  `json:"difficulty"`
	// ThinkTime is the minimum delay between the seat becoming due and its
	// first action.
	ThinkTime time.Duration `json:"thinkTime"`
	// MaxActionsPerCycle caps the actions submitted for the seat in one
	// scheduler cycle.
	MaxActionsPerCycle int `json:"maxActionsPerCycle"`
}

// DefaultConfig is used for takeovers and for auto-mode requests that leave
// fields empty.
func DefaultConfig() Config {
	return Config{
		Personality:        PersonalityBalanced,
		Difficulty:         DifficultyMedium,
		ThinkTime:          800 * time.Millisecond,
		MaxActionsPerCycle: 12,
	}
}

// withDefaults fills the zero fields of c from d.
func (c Config) withDefaults(d Config) Config {
	if c.Personality == "" {
		c.Personality = d.Personality
	}
	if c.Difficulty == "" {
		c.Difficulty = d.Difficulty
	}
	if c.ThinkTime == 0 {
		c.ThinkTime = d.ThinkTime
	}
	if c.MaxActionsPerCycle == 0 {
		c.MaxActionsPerCycle = d.MaxActionsPerCycle
	}
	return c
}

func (c Config) Validate() error {
	switch c.Personality {
	case PersonalityBalanced, PersonalityBuilder, PersonalityTrader, PersonalityAggressive:
	default:
		return fmt.Errorf("%w: unknown personality %q", ErrInvalidConfig, c.Personality)
	}
	switch c.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidConfig, c.Difficulty)
	}
	if c.ThinkTime < 0 {
		return fmt.Errorf("%w: think time must not be negative", ErrInvalidConfig)
	}
	if c.MaxActionsPerCycle < 1 {
		return fmt.Errorf("%w: at least one action per cycle is required", ErrInvalidConfig)
	}
	return nil
}

// Stats accumulate over the life of one seat automation.
type Stats struct {
	ActionsExecuted int       `json:"actionsExecuted"`
	TurnsPlayed     int       `json:"turnsPlayed"`
	Failures        int       `json:"failures"`
	LastActionAt    time.Time `json:"lastActionAt,omitempty"`
}

type seatAutomation struct {
	playerID  string
	mode      Mode
	cfg       Config
	stats     Stats
	createdAt time.Time

	// think-time gate
	due     bool
	readyAt time.Time
}

type registeredGame struct {
	id    string
	seats map[string]*seatAutomation
	// processing guards against overlapping cycles for the same game.
	processing bool
}
