package game

import (
	"github.com/jwebster45206/adventure-engine/pkg/chat"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// Snapshot is a point-in-time copy of a session, safe to serialize.
type Snapshot struct {
	ID            string              `json:"id"`
	SaveKey       string              `json:"saveKey"`
	Phase         state.Phase         `json:"phase"`
	Genre         string              `json:"genre,omitempty"`
	Customization state.Customization `json:"customization"`
	GameData      *state.GameData     `json:"gameData,omitempty"`
	ChatMessages  []chat.ChatMessage  `json:"chatMessages"`
	TurnInFlight  bool                `json:"turnInFlight"`
	OracleBusy    bool                `json:"oracleBusy"`
	LastError     string              `json:"lastError,omitempty"`
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		ID:            s.id.String(),
		SaveKey:       s.saveKey,
		Phase:         s.phase,
		Genre:         s.genre,
		Customization: s.customization,
		GameData:      s.gameData.Clone(),
		ChatMessages:  append(make([]chat.ChatMessage, 0, len(s.chatLog)), s.chatLog...),
		TurnInFlight:  s.inFlight,
		OracleBusy:    s.oracleBusy,
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}
