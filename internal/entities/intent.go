package entities

// ItemDelta adds or removes units of one item
type ItemDelta struct {
	ItemID   string `json:"item"`
	Quantity int    `json:"qty"`
}

// CommerceSell asks the server to sell one unit of an item
type CommerceSell struct {
	ItemID string `json:"item"`
}

// CommerceBuy asks the server to buy one unit of an item.
// Price is what the narrator quoted; the catalog value is charged.
type CommerceBuy struct {
	ItemID string `json:"item"`
	Price  int    `json:"price"`
}

// EncounterEnemy is one hostile group the narrator declares
type EncounterEnemy struct {
	Kind  string `json:"kind"`
	Name  string `json:"name,omitempty"`
	Count int    `json:"count,omitempty"`
	HP    int    `json:"hp,omitempty"`
	AC    int    `json:"ac,omitempty"`
}

// Encounter is narrator-declared hostile contact
type Encounter struct {
	Enemies []EncounterEnemy `json:"enemies"`
}

// CheckRequest is a narrator request for an ability or skill roll
type CheckRequest struct {
	Label    string `json:"label"`
	Notation string `json:"notation"`
	DC       int    `json:"dc"`
}

// StateChangeIntent is the narrator's declared effect on the world.
// It is untrusted and is never persisted.
type StateChangeIntent struct {
	HPDelta      int            `json:"hp_delta,omitempty"`
	GoldDelta    int            `json:"gold_delta,omitempty"`
	XPDelta      int            `json:"xp_delta,omitempty"`
	AddItems     []ItemDelta    `json:"add_items,omitempty"`
	RemoveItems  []ItemDelta    `json:"remove_items,omitempty"`
	Location     string         `json:"location,omitempty"`
	CommerceSell *CommerceSell  `json:"commerce_sell,omitempty"`
	CommerceBuy  *CommerceBuy   `json:"commerce_buy,omitempty"`
	WorldState   map[string]any `json:"world_state,omitempty"`
	Encounter    *Encounter     `json:"encounter,omitempty"`
	Checks       []CheckRequest `json:"checks,omitempty"`
}

// IsZero reports whether the intent declares nothing
func (i *StateChangeIntent) IsZero() bool {
	return i == nil || (i.HPDelta == 0 && i.GoldDelta == 0 && i.XPDelta == 0 &&
		len(i.AddItems) == 0 && len(i.RemoveItems) == 0 && i.Location == "" &&
		i.CommerceSell == nil && i.CommerceBuy == nil && len(i.WorldState) == 0 &&
		i.Encounter == nil && len(i.Checks) == 0)
}
