// Package config stores named serial port profiles on disk
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"serterm/pkg/serial"
)

// ErrNotFound is returned when a profile does not exist
var ErrNotFound = errors.New("profile not found")

const (
	storageFile    = "configs.json"
	storageVersion = "1.0"
)

// Profile is a saved serial configuration
type Profile struct {
	Name        string        `json:"name"`
	Config      serial.Config `json:"config"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUsedAt  time.Time     `json:"last_used_at"`
	Description string        `json:"description,omitempty"`
}

// Validate checks if the profile is valid
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if err := p.Config.Validate(); err != nil {
		return fmt.Errorf("invalid serial config: %w", err)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp cannot be zero")
	}
	return nil
}

// storage is the on-disk format
type storage struct {
	Configs map[string]Profile `json:"configs"`
	Version string             `json:"version"`
}

// Store keeps profiles in a JSON file inside dir
type Store struct {
	dir string
	now func() time.Time
}

// DefaultDir returns ~/.serterm
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".serterm"), nil
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Path returns the profile file location
func (s *Store) Path() string {
	return filepath.Join(s.dir, storageFile)
}

// Save creates or replaces a profile, keeping the creation time and
// description of an existing one
func (s *Store) Save(name string, cfg serial.Config) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := s.load()
	if err != nil {
		return err
	}

	now := s.now()
	p := Profile{
		Name:       name,
		Config:     cfg,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if existing, ok := st.Configs[name]; ok {
		p.CreatedAt = existing.CreatedAt
		p.Description = existing.Description
	}
	st.Configs[name] = p

	if err := s.save(st); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Load returns a profile's configuration and records it as last used
func (s *Store) Load(name string) (serial.Config, error) {
	p, err := s.Get(name)
	if err != nil {
		return serial.Config{}, err
	}

	st, err := s.load()
	if err == nil {
		p.LastUsedAt = s.now()
		st.Configs[name] = p
		// last used time is informational
		_ = s.save(st)
	}
	return p.Config, nil
}

// Get returns a profile without touching its last used time
func (s *Store) Get(name string) (Profile, error) {
	if name == "" {
		return Profile{}, fmt.Errorf("profile name cannot be empty")
	}
	st, err := s.load()
	if err != nil {
		return Profile{}, err
	}
	p, ok := st.Configs[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// Exists reports whether a profile is saved under name
func (s *Store) Exists(name string) bool {
	_, err := s.Get(name)
	return err == nil
}

// List returns all profiles sorted by name
func (s *Store) List() ([]Profile, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(st.Configs))
	for _, p := range st.Configs {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles, nil
}

// LastUsed returns the most recently used profile
func (s *Store) LastUsed() (Profile, error) {
	profiles, err := s.List()
	if err != nil {
		return Profile{}, err
	}
	if len(profiles) == 0 {
		return Profile{}, ErrNotFound
	}

	last := profiles[0]
	for _, p := range profiles[1:] {
		if p.LastUsedAt.After(last.LastUsedAt) {
			last = p
		}
	}
	return last, nil
}

// Delete removes a profile
func (s *Store) Delete(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	st, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := st.Configs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(st.Configs, name)

	if err := s.save(st); err != nil {
		return fmt.Errorf("failed to save profiles after deletion: %w", err)
	}
	return nil
}

// SetDescription attaches a free form description to a profile
func (s *Store) SetDescription(name, description string) error {
	st, err := s.load()
	if err != nil {
		return err
	}
	p, ok := st.Configs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	p.Description = description
	st.Configs[name] = p
	return s.save(st)
}

func (s *Store) load() (storage, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return storage{Configs: make(map[string]Profile), Version: storageVersion}, nil
		}
		return storage{}, fmt.Errorf("failed to read profile file: %w", err)
	}

	var st storage
	if err := json.Unmarshal(data, &st); err != nil {
		return storage{}, fmt.Errorf("failed to parse profile file: %w", err)
	}
	if st.Configs == nil {
		st.Configs = make(map[string]Profile)
	}
	return st, nil
}

// save writes to a temporary file and renames it over the old one
func (s *Store) save(st storage) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	path := s.Path()
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary profile file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary profile file: %w", err)
	}
	return nil
}
