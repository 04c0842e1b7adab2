package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// Kind names the game event a request is built for.
type Kind string

const (
	KindInit   Kind = "init"
	KindTurn   Kind = "turn"
	KindOracle Kind = "oracle"
	KindImage  Kind = "image"
)

// Request is a rendered prompt ready to hand to a generator. Schema is nil
// for free-text requests.
type Request struct {
	Kind   Kind
	System string
	Prompt string
	Schema *Schema
}

// Builder renders requests from game state using a fluent interface.
// The same inputs always produce the same request.
type Builder struct {
	genre        string
	history      []state.AdventureTurn
	action       string
	character    string
	stats        *state.CharacterStats
	inCombat     bool
	custom       state.Customization
	historyLimit int
	excerptLimit int
}

// New creates a builder with the default history window.
func New() *Builder {
	return &Builder{
		historyLimit: HistoryWindow,
		excerptLimit: StoryExcerptLimit,
	}
}

// WithGameData copies genre, history, character and stats from gd.
func (b *Builder) WithGameData(gd *state.GameData) *Builder {
	if gd == nil {
		return b
	}
	stats := gd.Stats
	b.genre = gd.Genre
	b.history = gd.History
	b.character = gd.CharacterDescription
	b.stats = &stats
	return b
}

func (b *Builder) WithGenre(genre string) *Builder {
	b.genre = genre
	return b
}

func (b *Builder) WithHistory(history []state.AdventureTurn) *Builder {
	b.history = history
	return b
}

// WithAction sets the player's chosen or typed action.
func (b *Builder) WithAction(action string) *Builder {
	b.action = action
	return b
}

func (b *Builder) WithCharacter(description string) *Builder {
	b.character = description
	return b
}

func (b *Builder) WithStats(stats state.CharacterStats) *Builder {
	b.stats = &stats
	return b
}

// WithCombat marks the turn as resolved inside a fight.
func (b *Builder) WithCombat(inCombat bool) *Builder {
	b.inCombat = inCombat
	return b
}

func (b *Builder) WithCustomization(c state.Customization) *Builder {
	b.custom = c
	return b
}

// WithHistoryLimit overrides the history window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// BuildInit renders the character-initialization request.
func (b *Builder) BuildInit() (*Request, error) {
	if strings.TrimSpace(b.genre) == "" {
		return nil, fmt.Errorf("genre is required")
	}

	prompt := fmt.Sprintf(initTemplate,
		b.genre,
		orUnspecified(b.custom.World),
		orUnspecified(b.custom.Hero),
		orUnspecified(b.custom.Weapon),
		orUnspecified(b.custom.Villain),
	)

	return &Request{
		Kind:   KindInit,
		System: NarratorSystemPrompt,
		Prompt: prompt,
		Schema: InitSchema(),
	}, nil
}

// BuildTurn renders the turn-continuation request.
func (b *Builder) BuildTurn() (*Request, error) {
	if strings.TrimSpace(b.genre) == "" {
		return nil, fmt.Errorf("genre is required")
	}
	action := strings.TrimSpace(b.action)
	if action == "" {
		return nil, fmt.Errorf("action is required")
	}
	if b.stats == nil {
		return nil, fmt.Errorf("stats are required")
	}

	directive := ""
	if b.inCombat {
		directive = combatDirective
	}

	prompt := fmt.Sprintf(turnTemplate,
		b.genre,
		orUnspecified(b.character),
		FormatStats(*b.stats),
		directive,
		b.renderHistory(),
		action,
	)

	return &Request{
		Kind:   KindTurn,
		System: NarratorSystemPrompt,
		Prompt: prompt,
		Schema: TurnResultSchema(),
	}, nil
}

// BuildOracle renders a free-text question with a shorter context window.
func (b *Builder) BuildOracle(question string) (*Request, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	stories := make([]string, 0, OracleWindow)
	for _, t := range window(b.history, OracleWindow) {
		stories = append(stories, Truncate(t.Story, OracleExcerptLimit))
	}

	return &Request{
		Kind:   KindOracle,
		System: OracleSystemPrompt,
		Prompt: fmt.Sprintf(oracleTemplate, strings.Join(stories, "\n"), question),
	}, nil
}

// BuildImage renders an image request for a turn's visual descriptor.
func BuildImage(descriptor string) (*Request, error) {
	if strings.TrimSpace(descriptor) == "" {
		return nil, fmt.Errorf("image descriptor is required")
	}
	return &Request{Kind: KindImage, Prompt: ImagePrompt(descriptor)}, nil
}

func (b *Builder) renderHistory() string {
	turns := window(b.history, b.historyLimit)
	if len(turns) == 0 {
		return "(начало истории)"
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("Место: %s\nСобытие: %s", t.LocationName, Truncate(t.Story, b.excerptLimit)))
	}
	return strings.Join(lines, "\n")
}

func window(history []state.AdventureTurn, n int) []state.AdventureTurn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
