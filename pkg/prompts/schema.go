package prompts

import (
	"sort"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// SchemaType is a JSON Schema primitive.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeArray   SchemaType = "array"
)

// Schema is a provider-neutral description of the structured output a
// request expects. Generators translate it into their own schema types.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Minimum     *int               `json:"minimum,omitempty"`
	Maximum     *int               `json:"maximum,omitempty"`
}

// RequiredPaths lists every required field as a dotted path, sorted.
// Nested objects contribute "parent.child" entries.
func (s *Schema) RequiredPaths() []string {
	var out []string
	s.collectRequired("", &out)
	sort.Strings(out)
	return out
}

func (s *Schema) collectRequired(prefix string, out *[]string) {
	if s == nil {
		return
	}
	for _, name := range s.Required {
		*out = append(*out, prefix+name)
	}
	for name, prop := range s.Properties {
		if prop.Type == TypeObject {
			prop.collectRequired(prefix+name+".", out)
		}
	}
}

func str(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc}
}

func integer(desc string) *Schema {
	return &Schema{Type: TypeInteger, Description: desc}
}

func intRange(desc string, lo, hi int) *Schema {
	return &Schema{Type: TypeInteger, Description: desc, Minimum: &lo, Maximum: &hi}
}

func strList(desc string) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: &Schema{Type: TypeString}}
}

func locationTypeEnum() []string {
	out := make([]string, len(state.LocationTypes))
	for i, lt := range state.LocationTypes {
		out[i] = string(lt)
	}
	return out
}

// StatsSchema describes a CharacterStats snapshot.
func StatsSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"hp":    integer("current hit points"),
			"maxHp": integer("maximum hit points, at least 1"),
			"str":   integer("strength"),
			"agi":   integer("agility"),
			"int":   integer("intelligence"),
			"level": integer("character level"),
			"exp":   integer("experience points"),
		},
		Required: []string{"hp", "maxHp", "str", "agi", "int", "level", "exp"},
	}
}

// CombatInfoSchema describes the enemy block of a threat turn.
func CombatInfoSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"enemyName":     str("enemy name"),
			"enemyHp":       integer("enemy hit points"),
			"enemyMaxHp":    integer("enemy maximum hit points"),
			"lastActionLog": str("what happened in the last exchange"),
		},
		Required: []string{"enemyName", "enemyHp", "enemyMaxHp", "lastActionLog"},
	}
}

// TurnSchema describes a single AdventureTurn.
func TurnSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"locationName": str("short place name, 2-3 words"),
			"locationType": {Type: TypeString, Enum: locationTypeEnum()},
			"threatLevel":  intRange("danger from 0 to 10", state.MinThreatLevel, state.MaxThreatLevel),
			"discoveryTag": str("optional discovery label"),
			"story":        str("narrative text in Russian"),
			"choices":      strList("player options in Russian"),
			"inventory":    strList("items the hero carries"),
			"currentQuest": str("current goal"),
			"imagePrompt":  str("English visual description of the scene"),
			"combatInfo":   CombatInfoSchema(),
		},
		Required: []string{
			"locationName", "locationType", "threatLevel", "story",
			"choices", "inventory", "currentQuest", "imagePrompt",
		},
	}
}

// InitSchema describes the character-initialization payload.
func InitSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"characterDescription": str("hero description in Russian"),
			"stats":                StatsSchema(),
			"turn":                 TurnSchema(),
		},
		Required: []string{"characterDescription", "stats", "turn"},
	}
}

// TurnResultSchema describes the turn-continuation payload.
func TurnResultSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"turn":         TurnSchema(),
			"updatedStats": StatsSchema(),
		},
		Required: []string{"turn", "updatedStats"},
	}
}
