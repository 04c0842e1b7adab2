package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-engine/pkg/chat"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

func newTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewRedisStorage(mr.Addr(), t.TempDir(), logger)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func sampleSave(locType state.LocationType) *state.SaveFile {
	gd := state.NewGameData("Темное фэнтези")
	gd.CharacterDescription = "Странник"
	gd.Append(state.AdventureTurn{
		LocationName: "Ворота",
		LocationType: state.LocationNeutral,
		Story:        "Вы у ворот.",
		Choices:      []string{"Войти"},
		Inventory:    []string{},
	})
	turn := state.AdventureTurn{
		LocationName: "Склеп",
		LocationType: locType,
		ThreatLevel:  6,
		Story:        "Из тьмы выходит упырь.",
		Choices:      []string{"Атаковать", "Бежать"},
		Inventory:    []string{"меч"},
	}
	if locType == state.LocationThreat {
		turn.CombatInfo = &state.CombatInfo{EnemyName: "Упырь", EnemyHP: 30, EnemyMaxHP: 30}
	}
	gd.Append(turn)
	return &state.SaveFile{
		GameData:     gd,
		ChatMessages: []chat.ChatMessage{chat.UserMessage("Кто я?"), chat.ModelMessage("Странник.")},
	}
}

func TestRedisStorage_SaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	slot := state.SaveSlot("abc")

	require.NoError(t, s.SaveGame(ctx, slot, sampleSave(state.LocationThreat)))

	has, err := s.HasSave(ctx, slot)
	require.NoError(t, err)
	assert.True(t, has)

	loaded, err := s.LoadGame(ctx, slot)
	require.NoError(t, err)
	require.Len(t, loaded.GameData.History, 2)
	assert.Same(t, &loaded.GameData.History[1], loaded.GameData.CurrentTurn)
	assert.Equal(t, "Упырь", loaded.GameData.CurrentTurn.CombatInfo.EnemyName)
	assert.Len(t, loaded.ChatMessages, 2)
	assert.Equal(t, state.PhaseCombat, loaded.ResumePhase())
}

func TestRedisStorage_NonThreatResumesPlaying(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGame(ctx, "slot", sampleSave(state.LocationPOI)))
	loaded, err := s.LoadGame(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, state.PhasePlaying, loaded.ResumePhase())
}

func TestRedisStorage_LoadMissing(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.LoadGame(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNoSave)

	has, err := s.HasSave(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRedisStorage_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "not json", blob: "{{{"},
		{name: "no game data", blob: `{"chatMessages":[]}`},
		{name: "no turns", blob: `{"gameData":{"history":[],"genre":"x"},"chatMessages":[]}`},
		{name: "zero max hp", blob: `{"gameData":{"history":[{"locationName":"A","locationType":"neutral","story":"s","choices":["c"]}],"stats":{"hp":0,"maxHp":0}},"chatMessages":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mr := newTestStorage(t)
			require.NoError(t, mr.Set("slot", tt.blob))
			_, err := s.LoadGame(context.Background(), "slot")
			assert.ErrorIs(t, err, ErrSaveCorrupt)
		})
	}
}

func TestRedisStorage_Delete(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGame(ctx, "slot", sampleSave(state.LocationNeutral)))
	require.NoError(t, s.DeleteGame(ctx, "slot"))
	assert.False(t, mr.Exists("slot"))
	// deleting twice is fine
	assert.NoError(t, s.DeleteGame(ctx, "slot"))
}

func TestRedisStorage_SaveTTL(t *testing.T) {
	s, mr := newTestStorage(t)
	s.WithSaveTTL(time.Hour)
	require.NoError(t, s.SaveGame(context.Background(), "slot", sampleSave(state.LocationNeutral)))
	assert.Equal(t, time.Hour, mr.TTL("slot"))
}

func TestRedisStorage_SaveRejectsEmpty(t *testing.T) {
	s, _ := newTestStorage(t)
	assert.Error(t, s.SaveGame(context.Background(), "slot", nil))
	assert.Error(t, s.SaveGame(context.Background(), "slot", &state.SaveFile{}))
}

func TestRedisStorage_PingFailure(t *testing.T) {
	s, mr := newTestStorage(t)
	require.NoError(t, s.Ping(context.Background()))
	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestNewRedisStorage_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewRedisStorage("redis://"+mr.Addr()+"/0", "", logger)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, mr.Addr(), s.Client().Options().Addr)
}

func TestWaitForConnection_Cancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewRedisStorage("127.0.0.1:1", "", logger)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := s.WaitForConnection(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestListGenres(t *testing.T) {
	t.Run("embedded defaults", func(t *testing.T) {
		s, _ := newTestStorage(t)
		genres, err := s.ListGenres(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Темное фэнтези", "Киберпанк детектив", "Галактическая космоопера", "Готические ужасы"}, genres)
	})

	t.Run("override file", func(t *testing.T) {
		s, _ := newTestStorage(t)
		content := "genres:\n  - Вестерн\n  - '  '\n  - Нуар\n"
		require.NoError(t, os.WriteFile(filepath.Join(s.dataDir, GenresFile), []byte(content), 0o644))
		genres, err := s.ListGenres(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Вестерн", "Нуар"}, genres)
	})

	t.Run("empty override falls back", func(t *testing.T) {
		s, _ := newTestStorage(t)
		require.NoError(t, os.WriteFile(filepath.Join(s.dataDir, GenresFile), []byte("genres: []\n"), 0o644))
		genres, err := s.ListGenres(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DefaultGenres(), genres)
	})
}
