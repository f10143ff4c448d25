// Package session persists the (channel, user, thread) → agent session id
// map that lets a chat thread resume its CLI conversation across gateway
// restarts.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/remoteclaw/remoteclaw/internal/common/logger"
)

const (
	// FileName is the store file created under the session directory.
	FileName = "remoteclaw-sessions.json"

	// DefaultTTL is how long a mapping stays resumable.
	DefaultTTL = 7 * 24 * time.Hour

	// threadPlaceholder stands in for an absent thread id in serialized
	// keys. Opaque to consumers.
	threadPlaceholder = "_"
)

// Key identifies one conversation.
type Key struct {
	ChannelID string
	UserID    string
	ThreadID  string
}

// String serializes the key as "<channelId>:<userId>:<threadId|_>".
func (k Key) String() string {
	thread := k.ThreadID
	if thread == "" {
		thread = threadPlaceholder
	}
	return k.ChannelID + ":" + k.UserID + ":" + thread
}

type entry struct {
	SessionID string `json:"sessionId"`
	UpdatedAt int64  `json:"updatedAt"` // epoch ms
}

// Store is a TTL-evicting session map backed by a single JSON file.
// Single-writer per process; every write replaces the whole file via a temp
// file and atomic rename, so concurrent readers see either the old or the
// new version, never a torn one.
type Store struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	entries map[string]entry
	logger  *logger.Logger
	now     func() time.Time
}

// NewStore opens (or initializes) the store under dir. A missing or
// corrupted file starts empty; the next Set overwrites it. ttl <= 0 selects
// DefaultTTL.
func NewStore(dir string, ttl time.Duration, log *logger.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		path:    filepath.Join(dir, FileName),
		ttl:     ttl,
		entries: map[string]entry{},
		logger:  log.WithFields(zap.String("component", "session-store")),
		now:     time.Now,
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("session store corrupted, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return
	}
	s.entries = entries
}

// Get returns the session id for key, or ok=false when the entry is missing
// or expired. An expired entry is never returned.
func (s *Store) Get(key Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok {
		return "", false
	}
	if s.expired(e) {
		return "", false
	}
	return e.SessionID, true
}

// Set records a session id for key. Expired entries are purged, then the
// full store is rewritten atomically. The parent directory is created when
// missing.
func (s *Store) Set(key Key, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpired()
	s.entries[key.String()] = entry{
		SessionID: sessionID,
		UpdatedAt: s.now().UnixMilli(),
	}
	return s.write()
}

// Delete removes key's mapping if present and rewrites the file.
func (s *Store) Delete(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key.String()]; !ok {
		return nil
	}
	delete(s.entries, key.String())
	return s.write()
}

func (s *Store) expired(e entry) bool {
	return s.now().UnixMilli()-e.UpdatedAt > s.ttl.Milliseconds()
}

func (s *Store) purgeExpired() {
	for k, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, k)
		}
	}
}

func (s *Store) write() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session store: %w", err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", s.path, s.now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace session store: %w", err)
	}
	return nil
}
