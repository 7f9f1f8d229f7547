package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	SessionFile string
	Output      string
	Verbose     bool
}

// Session is the identity saved after create or join
type Session struct {
	GameID     string `json:"game_id"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

var errNoSession = errors.New("no saved session: run 'game create' or 'game join' first")

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   getEnvOrDefault("AVALON_SERVER", "http://localhost:8080"),
		SessionFile: getEnvOrDefault("AVALON_SESSION_FILE", defaultSessionFile()),
		Output:      "text",
		Verbose:     false,
	}
}

// LoadSession reads the saved session
func (c *Config) LoadSession() (*Session, error) {
	data, err := os.ReadFile(c.SessionFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNoSession
		}
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", c.SessionFile, err)
	}
	if s.GameID == "" || s.PlayerID == "" {
		return nil, errNoSession
	}
	return &s, nil
}

// SaveSession writes the session file
func (c *Config) SaveSession(s Session) error {
	dir := filepath.Dir(c.SessionFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(c.SessionFile, data, 0600)
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".avalon/session.json"
	}
	return filepath.Join(home, ".avalon", "session.json")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
