package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings are the runtime-tunable profiler knobs exposed over the API.
// The finding limits are pointers so an explicit 0 (report nothing of that
// kind) survives ApplyDefaults.
type Settings struct {
	NPlusOneLimit *int  `json:"nplus1_limit,omitempty"`
	SlowLimit     *int  `json:"slow_limit,omitempty"`
	StackHeaders  *bool `json:"stack_headers,omitempty"`
	RecentLimit   int   `json:"recent_limit,omitempty"`
}

var mu sync.Mutex

const (
	defaultNPlusOneLimit = 10
	defaultSlowLimit     = 5
	defaultRecentLimit   = 50

	// MaxLimit bounds every count-like knob.
	MaxLimit = 100
)

// ApplyDefaults fills zero-values with sane defaults.
func ApplyDefaults(s Settings) Settings {
	if s.NPlusOneLimit == nil {
		s.NPlusOneLimit = Int(defaultNPlusOneLimit)
	}
	if s.SlowLimit == nil {
		s.SlowLimit = Int(defaultSlowLimit)
	}
	if s.StackHeaders == nil {
		v := false
		s.StackHeaders = &v
	}
	if s.RecentLimit == 0 {
		s.RecentLimit = defaultRecentLimit
	}
	return s
}

// BoolValue dereferences an optional flag.
func BoolValue(b *bool) bool {
	return b != nil && *b
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

// IntValue dereferences an optional limit; nil reads as 0.
func IntValue(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// Validate rejects out-of-range knobs. A finding limit of 0 turns that
// header family off; recent_limit 0 means the default.
func Validate(s Settings) error {
	for _, l := range []struct {
		name string
		v    int
	}{
		{"nplus1_limit", IntValue(s.NPlusOneLimit)},
		{"slow_limit", IntValue(s.SlowLimit)},
		{"recent_limit", s.RecentLimit},
	} {
		if l.v < 0 || l.v > MaxLimit {
			return fmt.Errorf("%s must be between 0 and %d", l.name, MaxLimit)
		}
	}
	return nil
}

// Load reads settings from path; returns defaults if the file is missing.
func Load(path string) Settings {
	mu.Lock()
	defer mu.Unlock()
	if path == "" {
		return ApplyDefaults(Settings{})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ApplyDefaults(Settings{})
	}
	var s Settings
	_ = json.Unmarshal(data, &s)
	return ApplyDefaults(s)
}

// Save writes settings to path, creating parent directories.
func Save(path string, s Settings) error {
	mu.Lock()
	defer mu.Unlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Store keeps the active settings in memory and persists updates to path.
// An empty path keeps settings in memory only.
type Store struct {
	path string
	mu   sync.RWMutex
	cur  Settings
}

// NewStore loads path once.
func NewStore(path string) *Store {
	return &Store{path: path, cur: Load(path)}
}

// Current returns the active settings with defaults applied.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update validates, persists and activates next.
func (s *Store) Update(next Settings) (Settings, error) {
	if err := Validate(next); err != nil {
		return Settings{}, err
	}
	next = ApplyDefaults(next)
	if err := Save(s.path, next); err != nil {
		return Settings{}, err
	}
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
	return next, nil
}
