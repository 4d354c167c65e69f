package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const schemaVersion = 1

// Default filament cost, roughly $30/kg PLA.
const defaultCostPerGram = 0.03

const defaultCurrency = "USD"

// Settings holds the mutable engine configuration. Presets are not in
// here: they are a read-only catalog loaded separately at startup.
type Settings struct {
	SchemaVersion       int     `json:"schema_version"`
	FilamentCostPerGram float64 `json:"filament_cost_per_gram"`
	Currency            string  `json:"currency"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	backfillSettings(&settings)
	return &settings, nil
}

func (s *Store) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backfillSettings(settings)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) Update(fn func(*Settings)) (*Settings, error) {
	settings, err := s.Load()
	if err != nil {
		return nil, err
	}
	fn(settings)
	backfillSettings(settings)
	return settings, s.Save(settings)
}

func defaultSettings() *Settings {
	return &Settings{
		SchemaVersion:       schemaVersion,
		FilamentCostPerGram: defaultCostPerGram,
		Currency:            defaultCurrency,
	}
}

func backfillSettings(settings *Settings) {
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = schemaVersion
	}
	if settings.FilamentCostPerGram <= 0 {
		settings.FilamentCostPerGram = defaultCostPerGram
	}
	currency := strings.ToUpper(strings.TrimSpace(settings.Currency))
	if len(currency) != 3 {
		currency = defaultCurrency
	}
	settings.Currency = currency
}
