// Package dice rolls polyhedral dice for every resolution path in the engine.
//
// # Determinism
//
// All randomness flows through a Roller. Production wires the rpg-toolkit
// DefaultRoller; tests and replay tooling wire a SeededRoller, which yields the
// same sequence for the same seed, or a ScriptedRoller, which returns fixed
// faces in order.
package dice

import (
	"math/rand"
	"sync"

	toolkitdice "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

// Roller is the rpg-toolkit random source
type Roller = toolkitdice.Roller

// DefaultRoller is the rpg-toolkit production roller
var DefaultRoller Roller = toolkitdice.DefaultRoller

// SeededRoller is a deterministic Roller
type SeededRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededRoller returns a roller whose sequence depends only on seed
func NewSeededRoller(seed int64) *SeededRoller {
	return &SeededRoller{rng: rand.New(rand.NewSource(seed))}
}

// Roll rolls one die
func (r *SeededRoller) Roll(size int) (int, error) {
	if size <= 0 {
		return 0, errors.InvalidArgumentf("invalid die size: %d", size)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(size) + 1, nil
}

// RollN rolls count dice of the same size
func (r *SeededRoller) RollN(count, size int) ([]int, error) {
	if count <= 0 {
		return nil, errors.InvalidArgumentf("invalid dice count: %d", count)
	}
	out := make([]int, count)
	for i := range out {
		v, err := r.Roll(size)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ScriptedRoller returns preset faces in order, clamped to the die size.
// It fails once the script runs out.
type ScriptedRoller struct {
	mu     sync.Mutex
	values []int
	pos    int
}

// NewScriptedRoller returns a roller that plays back values
func NewScriptedRoller(values ...int) *ScriptedRoller {
	return &ScriptedRoller{values: values}
}

// Roll returns the next scripted face
func (r *ScriptedRoller) Roll(size int) (int, error) {
	if size <= 0 {
		return 0, errors.InvalidArgumentf("invalid die size: %d", size)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.values) {
		return 0, errors.Internal("scripted roller exhausted")
	}
	v := r.values[r.pos]
	r.pos++
	return max(1, min(v, size)), nil
}

// RollN returns the next count scripted faces
func (r *ScriptedRoller) RollN(count, size int) ([]int, error) {
	if count <= 0 {
		return nil, errors.InvalidArgumentf("invalid dice count: %d", count)
	}
	out := make([]int, count)
	for i := range out {
		v, err := r.Roll(size)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Remaining reports how many scripted faces are left
func (r *ScriptedRoller) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values) - r.pos
}
