package state

// Phase is the position of a session in the adventure lifecycle.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseSetup    Phase = "setup"
	PhaseLoading  Phase = "loading"
	PhasePlaying  Phase = "playing"
	PhaseCombat   Phase = "combat"
	PhaseGameOver Phase = "gameover"
	PhaseError    Phase = "error"
)

// PhaseForTurn picks Playing or Combat from the turn's location type.
func PhaseForTurn(t *AdventureTurn) Phase {
	if t.IsThreat() {
		return PhaseCombat
	}
	return PhasePlaying
}

// AcceptsActions reports whether a player action may be submitted.
func (p Phase) AcceptsActions() bool {
	return p == PhasePlaying || p == PhaseCombat
}

// Customization carries optional user-authored world seeds for a new game.
type Customization struct {
	World   string `json:"worldDesc,omitempty"`
	Hero    string `json:"heroDesc,omitempty"`
	Weapon  string `json:"weaponDesc,omitempty"`
	Villain string `json:"villainDesc,omitempty"`
}
