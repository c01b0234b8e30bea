package combat

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-toolkit/core"
	"github.com/KirkDiggler/rpg-toolkit/events"
)

// Event types published on the bus
const (
	EventStart          = "combat.start"
	EventAttack         = "combat.attack"
	EventEnemyDefeated  = "combat.enemy_defeated"
	EventPlayerDefeated = "combat.player_defeated"
	EventEnd            = "combat.end"
)

// Combatant is the core.Entity view of a fighter, snapshotted when an event is published
type Combatant struct {
	ID    string
	Kind  string
	Name  string
	HP    int
	MaxHP int
}

// GetID returns the combatant id
func (c *Combatant) GetID() string {
	return c.ID
}

// GetType returns the creature kind, or "character" for the player
func (c *Combatant) GetType() string {
	return c.Kind
}

var _ core.Entity = (*Combatant)(nil)

func (m *Machine) publish(ctx context.Context, eventType string, source, target *Combatant) {
	if m.bus == nil {
		return
	}
	var src, tgt core.Entity
	if source != nil {
		src = source
	}
	if target != nil {
		tgt = target
	}
	if err := m.bus.Publish(ctx, events.NewGameEvent(eventType, src, tgt)); err != nil {
		slog.WarnContext(ctx, "failed to publish combat event",
			"event", eventType,
			"error", err.Error())
	}
}

// SubscribeAudit logs every combat event at INFO and returns the subscription ids
func SubscribeAudit(bus events.EventBus) []string {
	handler := func(ctx context.Context, e events.Event) error {
		attrs := []any{"event", e.Type()}
		if src, ok := e.Source().(*Combatant); ok && src != nil {
			attrs = append(attrs, "source_id", src.ID, "source_hp", src.HP)
		}
		if tgt, ok := e.Target().(*Combatant); ok && tgt != nil {
			attrs = append(attrs, "target_id", tgt.ID, "target_hp", tgt.HP, "target_max_hp", tgt.MaxHP)
		}
		slog.InfoContext(ctx, "combat event", attrs...)
		return nil
	}

	ids := make([]string, 0, 5)
	for _, t := range []string{EventStart, EventAttack, EventEnemyDefeated, EventPlayerDefeated, EventEnd} {
		ids = append(ids, bus.SubscribeFunc(t, 100, handler))
	}
	return ids
}
