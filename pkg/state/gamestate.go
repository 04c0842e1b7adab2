package state

import (
	"encoding/base64"
	"fmt"
)

// LocationType classifies the place a turn happens in.
type LocationType string

const (
	LocationThreat  LocationType = "threat"
	LocationPOI     LocationType = "poi"
	LocationNeutral LocationType = "neutral"
)

// LocationTypes lists every accepted location type, in schema order.
var LocationTypes = []LocationType{LocationThreat, LocationPOI, LocationNeutral}

const (
	MinThreatLevel = 0
	MaxThreatLevel = 10
)

// CharacterStats is the hero's sheet. All values are non-negative.
type CharacterStats struct {
	HP    int `json:"hp"`
	MaxHP int `json:"maxHp"`
	Str   int `json:"str"`
	Agi   int `json:"agi"`
	Int   int `json:"int"`
	Level int `json:"level"`
	Exp   int `json:"exp"`
}

// DefaultStats returns the sheet a hero starts with before the model
// has produced one.
func DefaultStats() CharacterStats {
	return CharacterStats{HP: 100, MaxHP: 100, Str: 10, Agi: 10, Int: 10, Level: 1, Exp: 0}
}

// Clamp forces HP into [0, MaxHP].
func (s CharacterStats) Clamp() CharacterStats {
	if s.HP > s.MaxHP {
		s.HP = s.MaxHP
	}
	if s.HP < 0 {
		s.HP = 0
	}
	return s
}

// IsDead reports whether the hero has no hit points left.
func (s CharacterStats) IsDead() bool {
	return s.HP <= 0
}

// CombatInfo is present only while the current location is a threat.
type CombatInfo struct {
	EnemyName     string `json:"enemyName"`
	EnemyHP       int    `json:"enemyHp"`
	EnemyMaxHP    int    `json:"enemyMaxHp"`
	LastActionLog string `json:"lastActionLog"`
}

// AdventureTurn is one generated narrative beat. Turns are never mutated
// after they are appended to history.
type AdventureTurn struct {
	LocationName string       `json:"locationName"`
	LocationType LocationType `json:"locationType"`
	ThreatLevel  int          `json:"threatLevel"`
	DiscoveryTag string       `json:"discoveryTag,omitempty"`
	Story        string       `json:"story"`
	Choices      []string     `json:"choices"`
	Inventory    []string     `json:"inventory"`
	CurrentQuest string       `json:"currentQuest"`
	ImagePrompt  string       `json:"imagePrompt"`
	CombatInfo   *CombatInfo  `json:"combatInfo,omitempty"`
}

// IsThreat reports whether the turn puts the hero into combat.
func (t *AdventureTurn) IsThreat() bool {
	return t != nil && t.LocationType == LocationThreat
}

// Image is an inline illustration returned by the image endpoint.
type Image struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// DataURL renders the image as a data: URL suitable for an <img> tag.
func (i *Image) DataURL() string {
	if i == nil || len(i.Data) == 0 {
		return ""
	}
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(i.Data))
}

// GameData is the aggregate root of one adventure.
type GameData struct {
	History              []AdventureTurn `json:"history"`
	CurrentTurn          *AdventureTurn  `json:"currentTurn"`
	Genre                string          `json:"genre"`
	CharacterDescription string          `json:"characterDescription"`
	CurrentImage         *Image          `json:"currentImage"`
	// ImageTurn is the history length the current image was issued for.
	ImageTurn int            `json:"imageTurn,omitempty"`
	Stats     CharacterStats `json:"stats"`
}

// NewGameData starts an empty adventure in the given genre.
func NewGameData(genre string) *GameData {
	return &GameData{
		History: make([]AdventureTurn, 0),
		Genre:   genre,
		Stats:   DefaultStats(),
	}
}

// TurnNumber is the number of committed turns.
func (gd *GameData) TurnNumber() int {
	return len(gd.History)
}

// Append commits a turn to history and makes it current.
func (gd *GameData) Append(turn AdventureTurn) {
	gd.History = append(gd.History, turn)
	gd.CurrentTurn = &gd.History[len(gd.History)-1]
}

// Clone returns a deep copy that shares no slices with gd.
func (gd *GameData) Clone() *GameData {
	if gd == nil {
		return nil
	}
	cp := *gd
	cp.History = make([]AdventureTurn, len(gd.History))
	for i, t := range gd.History {
		cp.History[i] = t.clone()
	}
	cp.CurrentTurn = nil
	if len(cp.History) > 0 {
		cp.CurrentTurn = &cp.History[len(cp.History)-1]
	}
	if gd.CurrentImage != nil {
		img := *gd.CurrentImage
		img.Data = append([]byte(nil), gd.CurrentImage.Data...)
		cp.CurrentImage = &img
	}
	return &cp
}

func (t AdventureTurn) clone() AdventureTurn {
	t.Choices = append([]string(nil), t.Choices...)
	t.Inventory = append([]string(nil), t.Inventory...)
	if t.CombatInfo != nil {
		ci := *t.CombatInfo
		t.CombatInfo = &ci
	}
	return t
}
