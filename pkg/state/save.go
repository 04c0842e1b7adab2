package state

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jwebster45206/adventure-engine/pkg/chat"
)

// SaveSlotPrefix is the fixed save-slot identifier; sessions append their save key.
const SaveSlotPrefix = "infinite_adventure_save_v4"

// ErrInvalidSaveKey is returned for save keys outside [A-Za-z0-9_-]{1,64}.
var ErrInvalidSaveKey = errors.New("save key must be 1-64 letters, digits, '-' or '_'")

var saveKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NormalizeSaveKey trims a client-chosen save key and checks its alphabet.
func NormalizeSaveKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !saveKeyPattern.MatchString(key) {
		return "", ErrInvalidSaveKey
	}
	return key, nil
}

// SaveFile is the persisted snapshot of one adventure and its oracle log.
type SaveFile struct {
	GameData     *GameData          `json:"gameData"`
	ChatMessages []chat.ChatMessage `json:"chatMessages"`
}

// SaveSlot builds the storage key for a save key.
func SaveSlot(saveKey string) string {
	if saveKey == "" {
		return SaveSlotPrefix
	}
	return SaveSlotPrefix + ":" + saveKey
}

// ResumePhase is the phase a loaded save resumes into.
func (sf *SaveFile) ResumePhase() Phase {
	if sf.GameData == nil {
		return PhaseStart
	}
	if sf.GameData.Stats.IsDead() {
		return PhaseGameOver
	}
	return PhaseForTurn(sf.GameData.CurrentTurn)
}

// Normalize re-points CurrentTurn at the last history entry after decoding
// and clamps hp into [0, maxHp].
func (sf *SaveFile) Normalize() {
	if sf.GameData == nil {
		return
	}
	gd := sf.GameData
	gd.Stats = gd.Stats.Clamp()
	if len(gd.History) > 0 {
		gd.CurrentTurn = &gd.History[len(gd.History)-1]
	} else if gd.CurrentTurn != nil {
		gd.History = []AdventureTurn{*gd.CurrentTurn}
		gd.CurrentTurn = &gd.History[0]
	}
	if sf.ChatMessages == nil {
		sf.ChatMessages = make([]chat.ChatMessage, 0)
	}
}
