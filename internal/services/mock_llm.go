package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/adventure-engine/pkg/prompts"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// Canned payloads returned by MockGenerator when no hook is set.
const (
	MockTurnJSON = `{"locationName":"Перекресток","locationType":"neutral","threatLevel":1,"story":"Дорога раздваивается.","choices":["Налево","Направо"],"inventory":["факел"],"currentQuest":"Найти приют","imagePrompt":"a misty crossroads"}`

	MockInitJSON = `{"characterDescription":"Молчаливый странник","stats":{"hp":70,"maxHp":100,"str":11,"agi":10,"int":9,"level":1,"exp":0},"turn":` + MockTurnJSON + `}`

	MockTurnResultJSON = `{"turn":` + MockTurnJSON + `,"updatedStats":{"hp":90,"maxHp":100,"str":11,"agi":10,"int":9,"level":1,"exp":5}}`

	MockOracleReply = "Ответ скрыт в тумане."
)

// MockGenerator is a mock implementation of Generator for testing
type MockGenerator struct {
	GenerateJSONFunc  func(ctx context.Context, req *prompts.Request) ([]byte, error)
	GenerateTextFunc  func(ctx context.Context, req *prompts.Request) (string, error)
	GenerateImageFunc func(ctx context.Context, req *prompts.Request, aspectRatio string) (*state.Image, error)
	IsReadyFunc       func(ctx context.Context) (bool, error)

	// Track calls for testing
	JSONCalls  []*prompts.Request
	TextCalls  []*prompts.Request
	ImageCalls []*prompts.Request

	mu sync.Mutex // protects all fields above
}

var _ Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a new mock generator
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		JSONCalls:  make([]*prompts.Request, 0),
		TextCalls:  make([]*prompts.Request, 0),
		ImageCalls: make([]*prompts.Request, 0),
	}
}

// GenerateJSON returns a canned payload matching the request kind.
// Hooks run outside the lock so they may block without stalling other calls.
func (m *MockGenerator) GenerateJSON(ctx context.Context, req *prompts.Request) ([]byte, error) {
	m.mu.Lock()
	m.JSONCalls = append(m.JSONCalls, req)
	fn := m.GenerateJSONFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	switch req.Kind {
	case prompts.KindInit:
		return []byte(MockInitJSON), nil
	case prompts.KindTurn:
		return []byte(MockTurnResultJSON), nil
	default:
		return []byte(MockTurnJSON), nil
	}
}

func (m *MockGenerator) GenerateText(ctx context.Context, req *prompts.Request) (string, error) {
	m.mu.Lock()
	m.TextCalls = append(m.TextCalls, req)
	fn := m.GenerateTextFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return MockOracleReply, nil
}

func (m *MockGenerator) GenerateImage(ctx context.Context, req *prompts.Request, aspectRatio string) (*state.Image, error) {
	m.mu.Lock()
	m.ImageCalls = append(m.ImageCalls, req)
	fn := m.GenerateImageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req, aspectRatio)
	}
	return &state.Image{MIMEType: "image/png", Data: []byte(req.Prompt)}, nil
}

func (m *MockGenerator) IsReady(ctx context.Context) (bool, error) {
	m.mu.Lock()
	fn := m.IsReadyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return true, nil
}

func (m *MockGenerator) Close() error { return nil }

// SetJSONError makes every structured call fail with err
func (m *MockGenerator) SetJSONError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateJSONFunc = func(ctx context.Context, req *prompts.Request) ([]byte, error) {
		return nil, err
	}
}

// SetImageError makes every image call fail with err
func (m *MockGenerator) SetImageError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateImageFunc = func(ctx context.Context, req *prompts.Request, aspectRatio string) (*state.Image, error) {
		return nil, err
	}
}

// SetNotReady makes IsReady report an error
func (m *MockGenerator) SetNotReady(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IsReadyFunc = func(ctx context.Context) (bool, error) {
		return false, err
	}
}

// Reset clears all call tracking
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JSONCalls = make([]*prompts.Request, 0)
	m.TextCalls = make([]*prompts.Request, 0)
	m.ImageCalls = make([]*prompts.Request, 0)
}

// GetCalls returns copies of the call tracking data in a thread-safe way
func (m *MockGenerator) GetCalls() (jsonCalls, textCalls, imageCalls []*prompts.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jsonCalls = append([]*prompts.Request(nil), m.JSONCalls...)
	textCalls = append([]*prompts.Request(nil), m.TextCalls...)
	imageCalls = append([]*prompts.Request(nil), m.ImageCalls...)
	return jsonCalls, textCalls, imageCalls
}

// CountJSONCalls returns the number of structured calls of the given kind.
func (m *MockGenerator) CountJSONCalls(kind prompts.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.JSONCalls {
		if r.Kind == kind {
			n++
		}
	}
	return n
}
