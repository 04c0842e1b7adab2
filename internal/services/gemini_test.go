package services

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-engine/pkg/prompts"
)

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(prompts.TurnResultSchema())
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"turn", "updatedStats"}, s.Required)

	turn := s.Properties["turn"]
	require.NotNil(t, turn)
	assert.Equal(t, genai.TypeObject, turn.Type)

	lt := turn.Properties["locationType"]
	require.NotNil(t, lt)
	assert.Equal(t, genai.TypeString, lt.Type)
	assert.Equal(t, "enum", lt.Format)
	assert.Equal(t, []string{"threat", "poi", "neutral"}, lt.Enum)

	choices := turn.Properties["choices"]
	require.NotNil(t, choices)
	assert.Equal(t, genai.TypeArray, choices.Type)
	require.NotNil(t, choices.Items)
	assert.Equal(t, genai.TypeString, choices.Items.Type)

	assert.Equal(t, genai.TypeInteger, s.Properties["updatedStats"].Properties["hp"].Type)
	assert.Nil(t, toGenaiSchema(nil))
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{name: "nil", resp: nil, want: ""},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: ""},
		{
			name: "joins text parts",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Blob{MIMEType: "image/png"}, genai.Text(`1}`)}},
			}}},
			want: `{"a":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, responseText(tt.resp))
		})
	}
}

func TestRequireContent(t *testing.T) {
	assert.ErrorIs(t, requireContent("Gemini", ""), ErrEmptyContent)
	assert.ErrorIs(t, requireContent("Gemini", " \n"), ErrEmptyContent)
	assert.NoError(t, requireContent("Gemini", `{"turn":{}}`))
}
