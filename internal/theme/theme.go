// Package theme holds the light/dark preference and the matching colour
// palette. The preference lives in local key-value storage on the
// device; the server never sees it.
package theme

import (
	"context"
	"encoding/json"
	"sync"

	"transitwatch/internal/broadcast"

	"github.com/rs/zerolog/log"
)

// DarkModeKey is the storage key of the preference
const DarkModeKey = "darkMode"

// KV is local key-value storage
type KV interface {
	// Get returns the stored value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Palette is a full set of UI colours
type Palette struct {
	Primary       string `json:"primary"`
	PrimaryDark   string `json:"primary_dark"`
	Background    string `json:"background"`
	Surface       string `json:"surface"`
	Card          string `json:"card"`
	Text          string `json:"text"`
	TextSecondary string `json:"text_secondary"`
	Border        string `json:"border"`
	Success       string `json:"success"`
	Warning       string `json:"warning"`
	Error         string `json:"error"`
	TabBar        string `json:"tab_bar"`
	TabBarActive  string `json:"tab_bar_active"`
	Overlay       string `json:"overlay"`
}

var (
	// Light is the default palette
	Light = Palette{
		Primary:       "#2563EB",
		PrimaryDark:   "#1D4ED8",
		Background:    "#FFFFFF",
		Surface:       "#F8FAFC",
		Card:          "#FFFFFF",
		Text:          "#1E293B",
		TextSecondary: "#64748B",
		Border:        "#E2E8F0",
		Success:       "#16A34A",
		Warning:       "#F59E0B",
		Error:         "#DC2626",
		TabBar:        "#FFFFFF",
		TabBarActive:  "#2563EB",
		Overlay:       "rgba(0, 0, 0, 0.5)",
	}

	// Dark is the palette used in dark mode
	Dark = Palette{
		Primary:       "#3B82F6",
		PrimaryDark:   "#2563EB",
		Background:    "#0F172A",
		Surface:       "#1E293B",
		Card:          "#334155",
		Text:          "#F1F5F9",
		TextSecondary: "#94A3B8",
		Border:        "#334155",
		Success:       "#22C55E",
		Warning:       "#FCD34D",
		Error:         "#F87171",
		TabBar:        "#1E293B",
		TabBarActive:  "#3B82F6",
		Overlay:       "rgba(0, 0, 0, 0.7)",
	}
)

// Store holds the dark mode flag
type Store struct {
	kv KV

	// toggleMu orders flip and save so the stored value tracks memory
	toggleMu sync.Mutex

	mu       sync.RWMutex
	darkMode bool

	changes *broadcast.Broadcaster[bool]
}

// Load reads the stored preference. A missing or unreadable value means
// light mode.
func Load(ctx context.Context, kv KV) *Store {
	s := &Store{kv: kv, changes: broadcast.New[bool]()}

	raw, ok, err := kv.Get(ctx, DarkModeKey)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load theme preference")
		return s
	}
	if !ok {
		return s
	}

	var dark bool
	if err := json.Unmarshal([]byte(raw), &dark); err != nil {
		log.Warn().Str("value", raw).Msg("Ignoring unreadable theme preference")
		return s
	}
	s.darkMode = dark
	return s
}

// DarkMode reports whether dark mode is on
func (s *Store) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode
}

// Colors returns the palette for the current mode
func (s *Store) Colors() Palette {
	if s.DarkMode() {
		return Dark
	}
	return Light
}

// ToggleDarkMode flips the flag and persists it. The in-memory value
// changes even when saving fails.
func (s *Store) ToggleDarkMode(ctx context.Context) bool {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.Lock()
	s.darkMode = !s.darkMode
	dark := s.darkMode
	s.mu.Unlock()

	s.changes.Publish(dark)

	raw, _ := json.Marshal(dark)
	if err := s.kv.Set(ctx, DarkModeKey, string(raw)); err != nil {
		log.Error().Err(err).Bool("dark_mode", dark).Msg("Failed to save theme preference")
	}
	return dark
}

// Subscribe calls fn after every toggle
func (s *Store) Subscribe(fn func(bool)) func() {
	return s.changes.Subscribe(fn)
}
