package entities

import "slices"

// Phase is a combat state machine phase
type Phase string

// Combat phases
const (
	PhaseCombatStart   Phase = "combat_start"
	PhasePlayerTurn    Phase = "player_turn"
	PhaseResolvePlayer Phase = "resolve_player"
	PhaseEnemyTurn     Phase = "enemy_turn"
	PhaseCombatEnd     Phase = "combat_end"
)

// CombatOutcome is set when the phase reaches combat_end
type CombatOutcome string

// Combat outcomes
const (
	OutcomeNone    CombatOutcome = ""
	OutcomeVictory CombatOutcome = "victory"
	OutcomeDefeat  CombatOutcome = "defeat"
	OutcomeFled    CombatOutcome = "fled"
)

// ActionType is a structured player combat action
type ActionType string

// Combat actions
const (
	ActionAttack  ActionType = "attack"
	ActionDefend  ActionType = "defend"
	ActionFlee    ActionType = "flee"
	ActionUseItem ActionType = "use_item"
)

// CombatActions lists the actions available on a player turn
var CombatActions = []ActionType{ActionAttack, ActionDefend, ActionFlee, ActionUseItem}

// CombatAction is the structured action a client submits during combat
type CombatAction struct {
	Type     ActionType `json:"type"`
	TargetID string     `json:"target_id,omitempty"`
	ItemID   string     `json:"item_id,omitempty"`
}

// Enemy is a combat-local combatant
type Enemy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	HP          int    `json:"hp"`
	MaxHP       int    `json:"max_hp"`
	AC          int    `json:"ac"`
	AttackBonus int    `json:"attack_bonus"`
	Damage      string `json:"damage"`
	XP          int    `json:"xp"`
	LootTable   string `json:"loot_table"`
}

// Defeated reports whether the enemy is out of the fight
func (e *Enemy) Defeated() bool {
	return e.HP <= 0
}

// DiceRoll records one roll with its raw and modified values
type DiceRoll struct {
	Label    string `json:"label"`
	Formula  string `json:"formula"`
	Dice     []int  `json:"dice"`
	Raw      int    `json:"raw"`
	Modifier int    `json:"modifier"`
	Total    int    `json:"total"`
	Target   int    `json:"target,omitempty"`
	Success  bool   `json:"success"`
	Critical bool   `json:"critical,omitempty"`
	Fumble   bool   `json:"fumble,omitempty"`
}

// CombatLogEntry is one event in a combat round
type CombatLogEntry struct {
	Round     int        `json:"round"`
	Actor     string     `json:"actor"`
	Action    string     `json:"action"`
	Target    string     `json:"target,omitempty"`
	Rolls     []DiceRoll `json:"rolls,omitempty"`
	Damage    int        `json:"damage"`
	Narrative string     `json:"narrative"`
}

// CombatState is owned by the session for the lifetime of one encounter
type CombatState struct {
	Round               int              `json:"round"`
	Phase               Phase            `json:"phase"`
	Enemies             []Enemy          `json:"enemies"`
	Log                 []CombatLogEntry `json:"log"`
	ValidTargets        []string         `json:"valid_targets"`
	PlayerWonInitiative bool             `json:"player_won_initiative"`
	Defending           bool             `json:"defending"`
	InitiatedByPlayer   bool             `json:"initiated_by_player"`
	Transitions         []Phase          `json:"transitions"`
	Outcome             CombatOutcome    `json:"outcome,omitempty"`
}

// Clone returns a deep copy
func (c *CombatState) Clone() *CombatState {
	if c == nil {
		return nil
	}
	out := *c
	out.Enemies = slices.Clone(c.Enemies)
	out.Log = make([]CombatLogEntry, len(c.Log))
	for i, entry := range c.Log {
		entry.Rolls = slices.Clone(entry.Rolls)
		out.Log[i] = entry
	}
	out.ValidTargets = slices.Clone(c.ValidTargets)
	out.Transitions = slices.Clone(c.Transitions)
	return &out
}

// Enemy returns the roster entry with id, or nil
func (c *CombatState) Enemy(id string) *Enemy {
	for i := range c.Enemies {
		if c.Enemies[i].ID == id {
			return &c.Enemies[i]
		}
	}
	return nil
}

// Surviving returns the enemies still standing
func (c *CombatState) Surviving() []*Enemy {
	var out []*Enemy
	for i := range c.Enemies {
		if !c.Enemies[i].Defeated() {
			out = append(out, &c.Enemies[i])
		}
	}
	return out
}

// IsValidTarget reports whether id may be attacked at this decision point
func (c *CombatState) IsValidTarget(id string) bool {
	return slices.Contains(c.ValidTargets, id)
}

// LastLog returns up to n of the most recent log entries
func (c *CombatState) LastLog(n int) []CombatLogEntry {
	if len(c.Log) <= n {
		return slices.Clone(c.Log)
	}
	return slices.Clone(c.Log[len(c.Log)-n:])
}
