package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ConsoleConfig struct {
	APIBaseURL string
	// Timeout covers a whole turn, including the server's retry schedule.
	Timeout time.Duration
	// SaveKey names the server-side save slot across runs.
	SaveKey string
}

func main() {
	saveKey, err := resolveSaveKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not resolve save key: %v\nSet SAVE_KEY to choose one.\n", err)
		os.Exit(1)
	}
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    3 * time.Minute,
		SaveKey:    saveKey,
	}

	api := newAPIClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ok := api.testConnection(ctx)
	cancel()
	if !ok {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, api),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
