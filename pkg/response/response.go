// Package response turns raw model payloads into typed game state. It never
// repairs a payload: anything missing, mistyped or out of range is rejected
// with ErrMalformedResponse and the caller decides what to do.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// ErrMalformedResponse matches every *MalformedError via errors.Is.
var ErrMalformedResponse = errors.New("malformed response")

// MalformedError explains why a payload was rejected.
type MalformedError struct {
	Payload string // "turn", "init" or "turn result"
	Reason  string
	Err     error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.Payload, e.Reason)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }

// InitResult is the validated payload of a character-initialization call.
type InitResult struct {
	CharacterDescription string
	Stats                state.CharacterStats
	Turn                 state.AdventureTurn
}

// TurnResult is the validated payload of a turn-continuation call.
type TurnResult struct {
	Turn  state.AdventureTurn
	Stats state.CharacterStats
}

// Pointer fields let the validator tell an absent field from a zero value.
type turnDTO struct {
	LocationName *string    `json:"locationName" validate:"required,notblank"`
	LocationType *string    `json:"locationType" validate:"required,oneof=threat poi neutral"`
	ThreatLevel  *int       `json:"threatLevel" validate:"required,min=0,max=10"`
	DiscoveryTag *string    `json:"discoveryTag"`
	Story        *string    `json:"story" validate:"required,notblank"`
	Choices      *[]string  `json:"choices" validate:"required,min=1,dive,notblank"`
	Inventory    *[]string  `json:"inventory" validate:"required"`
	CurrentQuest *string    `json:"currentQuest" validate:"required"`
	ImagePrompt  *string    `json:"imagePrompt" validate:"required"`
	CombatInfo   *combatDTO `json:"combatInfo" validate:"omitempty"`
}

type combatDTO struct {
	EnemyName     *string `json:"enemyName" validate:"required"`
	EnemyHP       *int    `json:"enemyHp" validate:"required,min=0"`
	EnemyMaxHP    *int    `json:"enemyMaxHp" validate:"required,min=0"`
	LastActionLog *string `json:"lastActionLog" validate:"required"`
}

type statsDTO struct {
	HP    *int `json:"hp" validate:"required,min=0"`
	MaxHP *int `json:"maxHp" validate:"required,min=1"`
	Str   *int `json:"str" validate:"required,min=0"`
	Agi   *int `json:"agi" validate:"required,min=0"`
	Int   *int `json:"int" validate:"required,min=0"`
	Level *int `json:"level" validate:"required,min=0"`
	Exp   *int `json:"exp" validate:"required,min=0"`
}

type initDTO struct {
	CharacterDescription *string   `json:"characterDescription" validate:"required,notblank"`
	Stats                *statsDTO `json:"stats" validate:"required"`
	Turn                 *turnDTO  `json:"turn" validate:"required"`
}

type turnResultDTO struct {
	Turn         *turnDTO  `json:"turn" validate:"required"`
	UpdatedStats *statsDTO `json:"updatedStats" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ParseTurn validates a bare AdventureTurn payload.
func ParseTurn(raw []byte) (*state.AdventureTurn, error) {
	var dto turnDTO
	if err := decode("turn", raw, &dto); err != nil {
		return nil, err
	}
	if err := check("turn", &dto); err != nil {
		return nil, err
	}
	if err := dto.checkCombat("turn"); err != nil {
		return nil, err
	}
	turn := dto.toTurn()
	return &turn, nil
}

// ParseInit validates a character-initialization payload.
func ParseInit(raw []byte) (*InitResult, error) {
	var dto initDTO
	if err := decode("init", raw, &dto); err != nil {
		return nil, err
	}
	if err := check("init", &dto); err != nil {
		return nil, err
	}
	if err := dto.Turn.checkCombat("init"); err != nil {
		return nil, err
	}
	return &InitResult{
		CharacterDescription: strings.TrimSpace(*dto.CharacterDescription),
		Stats:                dto.Stats.toStats(),
		Turn:                 dto.Turn.toTurn(),
	}, nil
}

// ParseTurnResult validates a turn-continuation payload.
func ParseTurnResult(raw []byte) (*TurnResult, error) {
	var dto turnResultDTO
	if err := decode("turn result", raw, &dto); err != nil {
		return nil, err
	}
	if err := check("turn result", &dto); err != nil {
		return nil, err
	}
	if err := dto.Turn.checkCombat("turn result"); err != nil {
		return nil, err
	}
	return &TurnResult{
		Turn:  dto.Turn.toTurn(),
		Stats: dto.UpdatedStats.toStats(),
	}, nil
}

// StripCodeFence removes a surrounding ```json ... ``` block, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func decode(payload string, raw []byte, dst any) error {
	text := StripCodeFence(string(raw))
	if text == "" {
		return &MalformedError{Payload: payload, Reason: "empty payload"}
	}
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return &MalformedError{Payload: payload, Reason: "not valid JSON: " + err.Error(), Err: err}
	}
	return nil
}

func check(payload string, dto any) error {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &MalformedError{Payload: payload, Reason: err.Error(), Err: err}
	}
	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		reasons = append(reasons, describe(fe))
	}
	return &MalformedError{Payload: payload, Reason: strings.Join(reasons, "; "), Err: err}
}

func describe(fe validator.FieldError) string {
	// Drop the DTO type name from "turnResultDTO.turn.story".
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "min", "max":
		return fmt.Sprintf("%s violates %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func (d *turnDTO) checkCombat(payload string) error {
	if d.CombatInfo == nil {
		return nil
	}
	if *d.CombatInfo.EnemyHP > *d.CombatInfo.EnemyMaxHP {
		return &MalformedError{
			Payload: payload,
			Reason: fmt.Sprintf("combatInfo.enemyHp %d exceeds enemyMaxHp %d",
				*d.CombatInfo.EnemyHP, *d.CombatInfo.EnemyMaxHP),
		}
	}
	return nil
}

func (d *turnDTO) toTurn() state.AdventureTurn {
	turn := state.AdventureTurn{
		LocationName: *d.LocationName,
		LocationType: state.LocationType(*d.LocationType),
		ThreatLevel:  *d.ThreatLevel,
		Story:        *d.Story,
		Choices:      append([]string{}, (*d.Choices)...),
		Inventory:    append([]string{}, (*d.Inventory)...),
		CurrentQuest: *d.CurrentQuest,
		ImagePrompt:  *d.ImagePrompt,
	}
	if d.DiscoveryTag != nil {
		turn.DiscoveryTag = *d.DiscoveryTag
	}
	if d.CombatInfo != nil {
		turn.CombatInfo = &state.CombatInfo{
			EnemyName:     *d.CombatInfo.EnemyName,
			EnemyHP:       *d.CombatInfo.EnemyHP,
			EnemyMaxHP:    *d.CombatInfo.EnemyMaxHP,
			LastActionLog: *d.CombatInfo.LastActionLog,
		}
	}
	return turn
}

func (d *statsDTO) toStats() state.CharacterStats {
	return state.CharacterStats{
		HP:    *d.HP,
		MaxHP: *d.MaxHP,
		Str:   *d.Str,
		Agi:   *d.Agi,
		Int:   *d.Int,
		Level: *d.Level,
		Exp:   *d.Exp,
	}
}
