package entities

import "maps"

// SessionStatus tracks whether a session still accepts actions
type SessionStatus string

// Session statuses
const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// Message roles in session history
const (
	RolePlayer   = "player"
	RoleNarrator = "narrator"
)

// Message is one entry in the session's sliding history window
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	At      int64  `json:"at"`
}

// GameOptions are per-session content settings forwarded to the narrator
type GameOptions struct {
	GoreLevel     string `json:"gore_level"`
	MatureLevel   string `json:"mature_level"`
	ConfirmCombat bool   `json:"confirm_combat"`
}

// LootItem is an item stack inside a loot set
type LootItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// PendingLoot is rolled on combat victory and claimed by searching
type PendingLoot struct {
	Gold   int        `json:"gold"`
	Items  []LootItem `json:"items"`
	Source string     `json:"source,omitempty"`
}

// Empty reports whether the set grants nothing
func (p *PendingLoot) Empty() bool {
	return p == nil || (p.Gold <= 0 && len(p.Items) == 0)
}

// Session is one playthrough of a character in a campaign setting
type Session struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	CharacterID string         `json:"character_id"`
	Setting     string         `json:"setting"`
	Location    string         `json:"location"`
	WorldState  map[string]any `json:"world_state,omitempty"`
	History     []Message      `json:"history"`
	Combat      *CombatState   `json:"combat,omitempty"`
	PendingLoot *PendingLoot   `json:"pending_loot,omitempty"`
	Options     GameOptions    `json:"options"`
	Status      SessionStatus  `json:"status"`
	Version     int64          `json:"version"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.WorldState = maps.Clone(s.WorldState)
	out.History = append([]Message(nil), s.History...)
	out.Combat = s.Combat.Clone()
	if s.PendingLoot != nil {
		loot := *s.PendingLoot
		loot.Items = append([]LootItem(nil), s.PendingLoot.Items...)
		out.PendingLoot = &loot
	}
	return &out
}

// AppendHistory adds messages and evicts the oldest beyond window
func (s *Session) AppendHistory(window int, msgs ...Message) {
	s.History = append(s.History, msgs...)
	if window > 0 && len(s.History) > window {
		s.History = append([]Message(nil), s.History[len(s.History)-window:]...)
	}
}

// InCombat reports whether an encounter is running
func (s *Session) InCombat() bool {
	return s.Combat != nil && s.Combat.Phase != PhaseCombatEnd
}
