// Package auth manages the credential profile catalog and the rotation
// policy that picks which profile a runtime should try next. The resolver is
// pure with respect to the store it is given: usage stats and lastGood are
// updated by the surrounding reply loop, never here.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Mode describes how a runtime authenticates against its provider.
type Mode string

const (
	ModeAPIKey Mode = "api-key"
	ModeToken  Mode = "token"
	ModeOAuth  Mode = "oauth"
	ModeAWSSDK Mode = "aws-sdk"
)

// CredentialType discriminates the credential union in the store file.
type CredentialType string

const (
	CredentialAPIKey CredentialType = "api_key"
	CredentialToken  CredentialType = "token"
)

// Credential is one stored secret. Type determines which value field is set.
type Credential struct {
	Type     CredentialType `json:"type"`
	Provider string         `json:"provider"`

	// Type == api_key
	Key string `json:"key,omitempty"`

	// Type == token
	Token   string `json:"token,omitempty"`
	Expires int64  `json:"expires,omitempty"` // epoch ms; 0 = no expiry

	Email string `json:"email,omitempty"`
}

// Stats tracks rotation state for one profile.
type Stats struct {
	LastUsed       int64          `json:"lastUsed,omitempty"`
	CooldownUntil  int64          `json:"cooldownUntil,omitempty"`
	DisabledUntil  int64          `json:"disabledUntil,omitempty"`
	DisabledReason string         `json:"disabledReason,omitempty"`
	ErrorCount     int            `json:"errorCount,omitempty"`
	FailureCounts  map[string]int `json:"failureCounts,omitempty"`
	LastFailureAt  int64          `json:"lastFailureAt,omitempty"`
}

// Store is the on-disk auth profile catalog.
type Store struct {
	Version    int                   `json:"version"`
	Profiles   map[string]Credential `json:"profiles"`
	Order      map[string][]string   `json:"order,omitempty"`
	LastGood   map[string]string     `json:"lastGood,omitempty"`
	UsageStats map[string]Stats      `json:"usageStats,omitempty"`
}

// LoadStore reads the store file at path. A missing, empty, or corrupted
// file yields an empty store, never an error: the next write by the owning
// tool replaces it.
func LoadStore(path string) *Store {
	empty := &Store{Version: 1, Profiles: map[string]Credential{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return empty
	}
	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return empty
	}
	if s.Profiles == nil {
		s.Profiles = map[string]Credential{}
	}
	return &s
}

// SaveStore writes the store atomically: temp file in the same directory,
// then rename. The parent directory is created if missing.
func SaveStore(path string, s *Store) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create auth store directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode auth store: %w", err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write auth store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace auth store: %w", err)
	}
	return nil
}

// Resolved is the outcome of credential resolution for one runtime start.
type Resolved struct {
	Mode      Mode
	APIKey    string
	ProfileID string
	Email     string
	// Source names where the credential came from, for diagnostics only.
	Source string
}
