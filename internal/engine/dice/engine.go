package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

const (
	maxDiceCount = 100
	maxDieSize   = 1000
)

var notationRegex = regexp.MustCompile(`^(\d*)d(\d+)\s*(?:([+-])\s*(\d+))?$`)

// Notation is a parsed XdY+Z expression
type Notation struct {
	Count    int
	Size     int
	Modifier int
}

// String formats the notation canonically, e.g. "2d6+3"
func (n Notation) String() string {
	switch {
	case n.Modifier > 0:
		return fmt.Sprintf("%dd%d+%d", n.Count, n.Size, n.Modifier)
	case n.Modifier < 0:
		return fmt.Sprintf("%dd%d%d", n.Count, n.Size, n.Modifier)
	default:
		return fmt.Sprintf("%dd%d", n.Count, n.Size)
	}
}

// WithModifier returns a copy with delta added to the modifier
func (n Notation) WithModifier(delta int) Notation {
	n.Modifier += delta
	return n
}

// ParseNotation parses "d20", "1d20+5", "2d6-1"
func ParseNotation(notation string) (Notation, error) {
	matches := notationRegex.FindStringSubmatch(strings.ToLower(strings.TrimSpace(notation)))
	if matches == nil {
		return Notation{}, errors.InvalidArgumentf("invalid dice notation: %q (expected XdY+Z)", notation)
	}

	n := Notation{Count: 1}
	if matches[1] != "" {
		count, err := strconv.Atoi(matches[1])
		if err != nil {
			return Notation{}, errors.InvalidArgumentf("invalid dice count in notation: %s", notation)
		}
		n.Count = count
	}

	size, err := strconv.Atoi(matches[2])
	if err != nil {
		return Notation{}, errors.InvalidArgumentf("invalid die size in notation: %s", notation)
	}
	n.Size = size

	if matches[4] != "" {
		mod, err := strconv.Atoi(matches[4])
		if err != nil {
			return Notation{}, errors.InvalidArgumentf("invalid modifier in notation: %s", notation)
		}
		if matches[3] == "-" {
			mod = -mod
		}
		n.Modifier = mod
	}

	if n.Count <= 0 || n.Size <= 0 {
		return Notation{}, errors.InvalidArgumentf("dice count and size must be positive: %s", notation)
	}
	if n.Count > maxDiceCount || n.Size > maxDieSize {
		return Notation{}, errors.InvalidArgumentf("dice notation out of range: %s", notation)
	}

	return n, nil
}

// Engine turns notations into logged rolls
type Engine struct {
	roller Roller
}

// NewEngine returns an engine over roller, falling back to DefaultRoller
func NewEngine(roller Roller) *Engine {
	if roller == nil {
		roller = DefaultRoller
	}
	return &Engine{roller: roller}
}

// Roll rolls a notation string
func (e *Engine) Roll(label, notation string) (entities.DiceRoll, error) {
	n, err := ParseNotation(notation)
	if err != nil {
		return entities.DiceRoll{}, err
	}
	return e.RollNotation(label, n, false)
}

// RollNotation rolls n. A critical roll doubles the dice, not the modifier.
func (e *Engine) RollNotation(label string, n Notation, critical bool) (entities.DiceRoll, error) {
	count := n.Count
	if critical {
		count *= 2
	}

	faces, err := e.roller.RollN(count, n.Size)
	if err != nil {
		return entities.DiceRoll{}, errors.Wrapf(err, "failed to roll %s", n)
	}

	raw := 0
	for _, f := range faces {
		raw += f
	}

	formula := n
	formula.Count = count
	return entities.DiceRoll{
		Label:    label,
		Formula:  formula.String(),
		Dice:     faces,
		Raw:      raw,
		Modifier: n.Modifier,
		Total:    raw + n.Modifier,
		Success:  true,
		Critical: critical,
	}, nil
}

// Check rolls 1d20+modifier against target. Success requires Total > target;
// a natural 20 always succeeds and a natural 1 always fails.
func (e *Engine) Check(label string, modifier, target int) (entities.DiceRoll, error) {
	roll, err := e.RollNotation(label, Notation{Count: 1, Size: 20, Modifier: modifier}, false)
	if err != nil {
		return entities.DiceRoll{}, err
	}

	natural := roll.Raw
	roll.Target = target
	roll.Critical = natural == 20
	roll.Fumble = natural == 1
	switch {
	case roll.Critical:
		roll.Success = true
	case roll.Fumble:
		roll.Success = false
	default:
		roll.Success = roll.Total > target
	}
	return roll, nil
}

// CheckNotation is Check for a narrator-supplied notation such as "1d20+3".
// Non-d20 notations are compared without natural-roll rules.
func (e *Engine) CheckNotation(label, notation string, target int) (entities.DiceRoll, error) {
	n, err := ParseNotation(notation)
	if err != nil {
		return entities.DiceRoll{}, err
	}
	if n.Count == 1 && n.Size == 20 {
		return e.Check(label, n.Modifier, target)
	}
	roll, err := e.RollNotation(label, n, false)
	if err != nil {
		return entities.DiceRoll{}, err
	}
	roll.Target = target
	roll.Success = roll.Total > target
	return roll, nil
}
