package prompts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "привет", limit: 10, want: "привет"},
		{name: "exact", in: "привет", limit: 6, want: "привет"},
		{name: "cut on runes", in: "привет", limit: 3, want: "при..."},
		{name: "no limit", in: "abc", limit: 0, want: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.limit))
		})
	}
}

func TestTurnSchema_LocationTypeEnum(t *testing.T) {
	lt := TurnSchema().Properties["locationType"]
	require.NotNil(t, lt)
	assert.Equal(t, []string{"threat", "poi", "neutral"}, lt.Enum)

	tl := TurnSchema().Properties["threatLevel"]
	require.NotNil(t, tl.Minimum)
	require.NotNil(t, tl.Maximum)
	assert.Equal(t, 0, *tl.Minimum)
	assert.Equal(t, 10, *tl.Maximum)
}

func TestSchema_RequiredPaths(t *testing.T) {
	paths := TurnResultSchema().RequiredPaths()
	assert.Contains(t, paths, "turn")
	assert.Contains(t, paths, "turn.story")
	assert.Contains(t, paths, "turn.combatInfo.enemyHp")
	assert.Contains(t, paths, "updatedStats.maxHp")
	assert.NotContains(t, paths, "turn.discoveryTag")
	assert.NotContains(t, paths, "turn.combatInfo")
}

func TestSchema_MarshalsAsJSONSchema(t *testing.T) {
	data, err := json.Marshal(InitSchema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "object", doc["type"])
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "characterDescription")
	assert.Contains(t, props, "stats")
	assert.Contains(t, props, "turn")
}
