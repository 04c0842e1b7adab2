package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/adventure-engine/pkg/response"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// Checks model payloads or save files captured to disk against the same
// rules the engine applies at runtime.
func main() {
	kind := flag.String("kind", "turnResult", "payload kind: init, turn, turnResult or save")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-kind init|turn|turnResult|save] <file.json>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	failed := 0
	for _, filename := range flag.Args() {
		if err := validateFile(*kind, filename); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(filename), err)
			failed++
			continue
		}
		fmt.Printf("%s: valid %s\n", filepath.Base(filename), *kind)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed for %d of %d files\n", failed, flag.NArg())
		os.Exit(1)
	}
}

func validateFile(kind, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return validatePayload(kind, data)
}

func validatePayload(kind string, data []byte) error {
	switch strings.ToLower(kind) {
	case "init":
		_, err := response.ParseInit(data)
		return err
	case "turn":
		_, err := response.ParseTurn(data)
		return err
	case "turnresult":
		_, err := response.ParseTurnResult(data)
		return err
	case "save":
		return validateSave(data)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
}

// validateSave checks a save blob strictly and runs every recorded turn
// back through the turn rules.
func validateSave(data []byte) error {
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()

	var save state.SaveFile
	if err := decoder.Decode(&save); err != nil {
		return fmt.Errorf("failed strict JSON unmarshaling: %w", err)
	}
	if save.GameData == nil {
		return fmt.Errorf("missing gameData")
	}
	if len(save.GameData.History) == 0 {
		return fmt.Errorf("gameData.history is empty")
	}

	var errs []string
	for i, turn := range save.GameData.History {
		raw, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		if _, err := response.ParseTurn(raw); err != nil {
			errs = append(errs, fmt.Sprintf("history[%d]: %v", i, err))
		}
	}
	stats := save.GameData.Stats
	if stats.MaxHP < 1 {
		errs = append(errs, "stats.maxHp must be at least 1")
	}
	if stats.HP < 0 || stats.HP > stats.MaxHP {
		errs = append(errs, fmt.Sprintf("stats.hp %d outside [0, %d]", stats.HP, stats.MaxHP))
	}
	for i, m := range save.ChatMessages {
		if m.Role != "user" && m.Role != "model" {
			errs = append(errs, fmt.Sprintf("chatMessages[%d]: unknown role %q", i, m.Role))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}
