package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/adventure-engine/internal/services"
)

const validTurn = `{"locationName":"Мост","locationType":"poi","threatLevel":2,"story":"Старый мост.","choices":["Перейти"],"inventory":[],"currentQuest":"Дойти","imagePrompt":"a bridge"}`

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		payload string
		wantErr bool
	}{
		{name: "valid init", kind: "init", payload: services.MockInitJSON},
		{name: "valid turn result", kind: "turnResult", payload: services.MockTurnResultJSON},
		{name: "valid turn", kind: "turn", payload: validTurn},
		{name: "turn missing story", kind: "turn", payload: `{"locationName":"x"}`, wantErr: true},
		{name: "unknown kind", kind: "scenario", payload: "{}", wantErr: true},
		{
			name:    "valid save",
			kind:    "save",
			payload: `{"gameData":{"history":[` + validTurn + `],"currentTurn":` + validTurn + `,"genre":"Нуар","characterDescription":"Сыщик","currentImage":null,"stats":{"hp":50,"maxHp":100,"str":1,"agi":1,"int":1,"level":1,"exp":0}},"chatMessages":[{"role":"user","text":"?"}]}`,
		},
		{
			name:    "save with unknown field",
			kind:    "save",
			payload: `{"gameData":{"history":[` + validTurn + `]},"extra":1}`,
			wantErr: true,
		},
		{
			name:    "save with hp above max",
			kind:    "save",
			payload: `{"gameData":{"history":[` + validTurn + `],"stats":{"hp":150,"maxHp":100}},"chatMessages":[]}`,
			wantErr: true,
		},
		{
			name:    "save with empty history",
			kind:    "save",
			payload: `{"gameData":{"history":[]},"chatMessages":[]}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePayload(tt.kind, []byte(tt.payload))
			if tt.wantErr && err == nil {
				t.Fatal("Expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestValidateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turn.json")
	if err := os.WriteFile(path, []byte(validTurn), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := validateFile("turn", path); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := validateFile("turn", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
