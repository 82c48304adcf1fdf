package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

var ErrLoadingFallbackFileFailed = errors.New("loading fallback file failed")

// fallbackFile is the format of FALLBACK_FILE.
type fallbackFile struct {
	Activities []activitystore.ActivityWithDetails `yaml:"activities"`
}

// FallbackTable returns the table the catalog answers from after backend errors.
// The bool is false when fallback is disabled. Without FALLBACK_FILE the built-in records are used.
func (cfg Config) FallbackTable() (activitystore.FallbackTable, bool, error) {
	if !cfg.FallbackEnabled {
		return activitystore.FallbackTable{}, false, nil
	}

	if cfg.FallbackFile == "" {
		table, err := activitystore.NewFallbackTable(activitystore.DefaultFallbackRecords()...)
		return table, err == nil, err
	}

	records, err := LoadFallbackRecords(cfg.FallbackFile)
	if err != nil {
		return activitystore.FallbackTable{}, false, err
	}

	table, err := activitystore.NewFallbackTable(records...)
	if err != nil {
		return activitystore.FallbackTable{}, false, errors.Join(ErrLoadingFallbackFileFailed, err)
	}

	return table, true, nil
}

// LoadFallbackRecords reads activities from a YAML file with a top-level "activities" list.
func LoadFallbackRecords(path string) ([]activitystore.ActivityWithDetails, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrLoadingFallbackFileFailed, err)
	}

	var file fallbackFile
	if err = yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Join(ErrLoadingFallbackFileFailed, err)
	}

	return file.Activities, nil
}
