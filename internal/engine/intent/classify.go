// Package intent classifies free-text player actions and parses the
// structured intents block out of narrator replies.
package intent

import (
	"regexp"
	"strings"
)

// Category is what the player appears to be trying to do
type Category string

// Categories
const (
	CategoryNone    Category = "none"
	CategorySell    Category = "sell"
	CategoryBuy     Category = "buy"
	CategorySearch  Category = "search"
	CategoryAttack  Category = "attack"
	CategoryDefend  Category = "defend"
	CategoryFlee    Category = "flee"
	CategoryUseItem Category = "use_item"
)

type pattern struct {
	category Category
	re       *regexp.Regexp
}

var (
	fleePattern    = pattern{CategoryFlee, regexp.MustCompile(`\b(flee|fleeing|run away|retreat|escape|bolt for)\b`)}
	defendPattern  = pattern{CategoryDefend, regexp.MustCompile(`\b(defend|block|parry|brace|take cover|raise my shield)\b`)}
	attackPattern  = pattern{CategoryAttack, regexp.MustCompile(`\b(attack|strike|hit|stab|slash|shoot|swing at|punch|charge at|kill)\b`)}
	sellPattern    = pattern{CategorySell, regexp.MustCompile(`\b(sell|selling|sold|pawn|trade in)\b`)}
	buyPattern     = pattern{CategoryBuy, regexp.MustCompile(`\b(buy|buying|purchase|purchasing|how much (is|for))\b`)}
	searchPattern  = pattern{CategorySearch, regexp.MustCompile(`\b(search|searching|loot|looting|rummage|scavenge|check the bod(y|ies)|pick up|collect the)\b`)}
	useItemPattern = pattern{CategoryUseItem, regexp.MustCompile(`\b(drink|quaff|use|consume|eat|apply)\b`)}
)

// Checked in order; the first match wins. A fight reads verbs as combat
// first, anywhere else trade and searching come first.
var (
	combatPatterns  = []pattern{fleePattern, defendPattern, attackPattern, sellPattern, buyPattern, searchPattern, useItemPattern}
	explorePatterns = []pattern{sellPattern, buyPattern, searchPattern, fleePattern, defendPattern, attackPattern, useItemPattern}
)

// Classify maps free text to a Category
func Classify(text string, inCombat bool) Category {
	ordered := explorePatterns
	if inCombat {
		ordered = combatPatterns
	}
	t := strings.ToLower(text)
	for _, p := range ordered {
		if p.re.MatchString(t) {
			return p.category
		}
	}
	return CategoryNone
}

// IsCommerce reports whether c is a buy or sell
func (c Category) IsCommerce() bool {
	return c == CategorySell || c == CategoryBuy
}

// IsCombat reports whether c maps to a combat action
func (c Category) IsCombat() bool {
	switch c {
	case CategoryAttack, CategoryDefend, CategoryFlee, CategoryUseItem:
		return true
	default:
		return false
	}
}
