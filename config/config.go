// Package config persists Settings and the local PeerId, the same way
// the teacher's manager package persists its Config as JSON under a
// lock-guarded path (manager.LoadConfig/SaveConfig).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/alexandertomana/MouseShare/peer"
)

// TransitionDelay is one of the four allowed values from spec §3/§6.
type TransitionDelay int

const (
	TransitionDelay0   TransitionDelay = 0
	TransitionDelay100 TransitionDelay = 100
	TransitionDelay250 TransitionDelay = 250
	TransitionDelay500 TransitionDelay = 500
)

// EdgeLinkEntry persists an auto-bound or user-configured edge -> peer
// link (spec §4.7 "Auto-linking", §9 legacy-link open question).
type EdgeLinkEntry struct {
	Edge   int    `json:"edge"`
	PeerID string `json:"peer_id"`
}

// ScreenEntry persists one ArrangedScreen's position, restored into
// arrangement.Arrangement at startup.
type ScreenEntry struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
	IsLocal bool    `json:"is_local"`
	PeerID  string  `json:"peer_id,omitempty"`
}

type ArrangementConfig struct {
	Screens []ScreenEntry   `json:"screens"`
	Links   []EdgeLinkEntry `json:"links"`
}

// Settings mirrors spec §3's data model exactly; EdgeThreshold and
// CornerDeadZone are clamped to their documented ranges by Validate.
type Settings struct {
	EncryptionEnabled    bool              `json:"encryption_enabled"`
	Password             string            `json:"password"`
	ClipboardSyncEnabled bool              `json:"clipboard_sync_enabled"`
	AutoConnect          bool              `json:"auto_connect"`
	EdgeThreshold        int               `json:"edge_threshold_px"`
	CornerDeadZone       int               `json:"corner_dead_zone_px"`
	TransitionDelay      TransitionDelay   `json:"transition_delay_ms"`
	Arrangement          ArrangementConfig `json:"arrangement"`
}

func Default() Settings {
	return Settings{
		ClipboardSyncEnabled: true,
		EdgeThreshold:        1,
		CornerDeadZone:       10,
		TransitionDelay:      TransitionDelay0,
	}
}

// Validate clamps out-of-range fields in place, per spec §3's bounds
// (edgeThreshold 1-10px, cornerDeadZone 0-50px).
func (s *Settings) Validate() {
	if s.EdgeThreshold < 1 {
		s.EdgeThreshold = 1
	}
	if s.EdgeThreshold > 10 {
		s.EdgeThreshold = 10
	}
	if s.CornerDeadZone < 0 {
		s.CornerDeadZone = 0
	}
	if s.CornerDeadZone > 50 {
		s.CornerDeadZone = 50
	}
	switch s.TransitionDelay {
	case TransitionDelay0, TransitionDelay100, TransitionDelay250, TransitionDelay500:
	default:
		s.TransitionDelay = TransitionDelay0
	}
}

// Store guards on-disk Settings and the persisted local PeerId under a
// single lock, mirroring manager.configLock's single package-level
// RWMutex around load/save.
type Store struct {
	mu   sync.RWMutex
	dir  string
}

// NewStore builds a Store rooted at dir (typically os.UserConfigDir()
// plus an app-specific subdirectory).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) settingsPath() string { return filepath.Join(s.dir, "settings.json") }
func (s *Store) identityPath() string { return filepath.Join(s.dir, "identity.json") }

// Load reads Settings from disk, returning Default() if no file
// exists yet — the same "missing file means fresh defaults" behavior
// as manager.LoadConfig.
func (s *Store) Load() (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Settings{}, err
	}

	data, err := os.ReadFile(s.settingsPath())
	if os.IsNotExist(err) {
		d := Default()
		return d, nil
	}
	if err != nil {
		return Settings{}, err
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	settings.Validate()
	return settings, nil
}

func (s *Store) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.Validate()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.settingsPath(), data, 0o600)
}

type identityFile struct {
	PeerID string `json:"peer_id"`
}

// LoadOrCreateIdentity returns the persisted local PeerId, generating
// and saving a new one on first run.
func (s *Store) LoadOrCreateIdentity() (peer.Id, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return peer.Id{}, err
	}

	data, err := os.ReadFile(s.identityPath())
	if err == nil {
		var f identityFile
		if err := json.Unmarshal(data, &f); err != nil {
			return peer.Id{}, err
		}
		return peer.ParseId(f.PeerID)
	}
	if !os.IsNotExist(err) {
		return peer.Id{}, err
	}

	id := peer.NewId()
	out, err := json.MarshalIndent(identityFile{PeerID: id.String()}, "", "  ")
	if err != nil {
		return peer.Id{}, err
	}
	if err := os.WriteFile(s.identityPath(), out, 0o600); err != nil {
		return peer.Id{}, err
	}
	return id, nil
}
