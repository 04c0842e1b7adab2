package storage

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_genres.yaml
var defaultGenresYAML []byte

// GenresFile is the optional override looked up in the data directory.
const GenresFile = "genres.yaml"

type genreCatalog struct {
	Genres []string `yaml:"genres"`
}

// DefaultGenres returns the built-in catalog.
func DefaultGenres() []string {
	genres, err := parseGenres(defaultGenresYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded genre catalog is invalid: %v", err))
	}
	return genres
}

// loadGenres reads <dataDir>/genres.yaml, falling back to the embedded list
// when the file is absent.
func loadGenres(dataDir string, logger *slog.Logger) ([]string, error) {
	path := filepath.Join(dataDir, GenresFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultGenres(), nil
		}
		return nil, fmt.Errorf("failed to read genres file: %w", err)
	}

	genres, err := parseGenres(data)
	if err != nil {
		logger.Warn("Ignoring invalid genres file", "path", path, "error", err)
		return DefaultGenres(), nil
	}
	return genres, nil
}

func parseGenres(data []byte) ([]string, error) {
	var catalog genreCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}

	genres := make([]string, 0, len(catalog.Genres))
	for _, g := range catalog.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	if len(genres) == 0 {
		return nil, errors.New("no genres listed")
	}
	return genres, nil
}
