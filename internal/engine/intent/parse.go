package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

// Status reports how the intents block parsed
type Status string

// Parse statuses
const (
	StatusOK        Status = "ok"
	StatusAbsent    Status = "absent"
	StatusMalformed Status = "malformed"
)

// Limits on a single declared encounter
const (
	MaxEnemyGroups   = 4
	MaxEnemiesPerTag = 6
)

// MaxDelta bounds the magnitude of any single hp, gold or xp delta, and
// MaxQuantity bounds item counts and prices
const (
	MaxDelta    = 10000
	MaxQuantity = 1000
)

var intentsBlock = regexp.MustCompile(`(?is)<intents>(.*?)</intents>`)

// ParseResult splits a narrator reply
type ParseResult struct {
	Narrative string
	Intent    *entities.StateChangeIntent
	Status    Status
	Problem   string
}

// Parse extracts the first <intents>{json}</intents> block. Anything that does
// not decode cleanly yields a nil Intent; the narrative is always returned.
func Parse(reply string) ParseResult {
	matches := intentsBlock.FindAllStringSubmatchIndex(reply, -1)
	if len(matches) == 0 {
		return ParseResult{Narrative: strings.TrimSpace(reply), Status: StatusAbsent}
	}

	narrative := strings.TrimSpace(intentsBlock.ReplaceAllString(reply, ""))
	first := matches[0]
	body := strings.TrimSpace(reply[first[2]:first[3]])
	body = strings.TrimPrefix(body, "```json")
	body = strings.Trim(strings.TrimSpace(body), "`")

	if body == "" || body == "{}" {
		return ParseResult{Narrative: narrative, Intent: &entities.StateChangeIntent{}, Status: StatusOK}
	}

	var decoded entities.StateChangeIntent
	dec := json.NewDecoder(bytes.NewBufferString(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decoded); err != nil {
		return ParseResult{Narrative: narrative, Status: StatusMalformed, Problem: err.Error()}
	}
	if dec.More() {
		return ParseResult{Narrative: narrative, Status: StatusMalformed, Problem: "trailing data after intents object"}
	}

	if err := validate(&decoded); err != nil {
		return ParseResult{Narrative: narrative, Status: StatusMalformed, Problem: err.Error()}
	}

	normalize(&decoded)
	return ParseResult{Narrative: narrative, Intent: &decoded, Status: StatusOK}
}

func validate(in *entities.StateChangeIntent) error {
	deltas := []struct {
		field string
		value int
	}{
		{"hp_delta", in.HPDelta},
		{"gold_delta", in.GoldDelta},
		{"xp_delta", in.XPDelta},
	}
	for _, d := range deltas {
		if d.value > MaxDelta || d.value < -MaxDelta {
			return fmt.Errorf("%s must be within ±%d", d.field, MaxDelta)
		}
	}
	for _, d := range in.AddItems {
		if strings.TrimSpace(d.ItemID) == "" || d.Quantity <= 0 || d.Quantity > MaxQuantity {
			return fmt.Errorf("add_items entry needs item and qty 1-%d", MaxQuantity)
		}
	}
	for _, d := range in.RemoveItems {
		if strings.TrimSpace(d.ItemID) == "" || d.Quantity <= 0 || d.Quantity > MaxQuantity {
			return fmt.Errorf("remove_items entry needs item and qty 1-%d", MaxQuantity)
		}
	}
	if in.CommerceSell != nil && strings.TrimSpace(in.CommerceSell.ItemID) == "" {
		return fmt.Errorf("commerce_sell needs item")
	}
	if in.CommerceBuy != nil && (strings.TrimSpace(in.CommerceBuy.ItemID) == "" || in.CommerceBuy.Price < 0 || in.CommerceBuy.Price > MaxQuantity) {
		return fmt.Errorf("commerce_buy needs item and price 0-%d", MaxQuantity)
	}
	if in.Encounter != nil {
		if len(in.Encounter.Enemies) == 0 || len(in.Encounter.Enemies) > MaxEnemyGroups {
			return fmt.Errorf("encounter needs 1-%d enemy groups", MaxEnemyGroups)
		}
		for _, e := range in.Encounter.Enemies {
			if strings.TrimSpace(e.Kind) == "" {
				return fmt.Errorf("encounter enemy needs kind")
			}
			if e.Count < 0 || e.Count > MaxEnemiesPerTag {
				return fmt.Errorf("encounter enemy count must be 0-%d", MaxEnemiesPerTag)
			}
		}
	}
	for _, c := range in.Checks {
		if strings.TrimSpace(c.Notation) == "" {
			return fmt.Errorf("check needs notation")
		}
	}
	return nil
}

func normalize(in *entities.StateChangeIntent) {
	for i := range in.AddItems {
		in.AddItems[i].ItemID = entities.NormalizeItemID(in.AddItems[i].ItemID)
	}
	for i := range in.RemoveItems {
		in.RemoveItems[i].ItemID = entities.NormalizeItemID(in.RemoveItems[i].ItemID)
	}
	if in.CommerceSell != nil {
		in.CommerceSell.ItemID = entities.NormalizeItemID(in.CommerceSell.ItemID)
	}
	if in.CommerceBuy != nil {
		in.CommerceBuy.ItemID = entities.NormalizeItemID(in.CommerceBuy.ItemID)
	}
	if in.Encounter != nil {
		for i := range in.Encounter.Enemies {
			if in.Encounter.Enemies[i].Count == 0 {
				in.Encounter.Enemies[i].Count = 1
			}
		}
	}
	in.Location = strings.TrimSpace(in.Location)
}
