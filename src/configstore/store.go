// Package configstore saves named zone/waste-mix presets so an instructor can reload a scenario.
package configstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ryansname/boilersim/src/combustion"
)

var (
	ErrNotFound  = errors.New("configuration not found")
	ErrEmptyName = errors.New("configuration name is required")
)

// Config is a saved air distribution and waste mix
type Config struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
	Zones       combustion.Zones    `json:"zones"`
	Mix         combustion.WasteMix `json:"mix"`
}

// Store persists configurations
type Store interface {
	List(ctx context.Context) ([]Config, error)
	Get(ctx context.Context, id string) (Config, error)
	Save(ctx context.Context, name, description string, zones combustion.Zones, mix combustion.WasteMix) (Config, error)
	Delete(ctx context.Context, id string) error
}

func newConfig(id, name, description string, now time.Time, zones combustion.Zones, mix combustion.WasteMix) (Config, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Config{}, ErrEmptyName
	}
	return Config{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
		Timestamp:   now,
		Zones:       zones.Normalize(),
		Mix:         mix.Normalize(),
	}, nil
}

// sortNewestFirst orders configurations by save time, newest first, then by name
func sortNewestFirst(configs []Config) {
	sort.Slice(configs, func(i, j int) bool {
		if !configs[i].Timestamp.Equal(configs[j].Timestamp) {
			return configs[i].Timestamp.After(configs[j].Timestamp)
		}
		return configs[i].Name < configs[j].Name
	})
}
