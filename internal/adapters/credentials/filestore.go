package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	model "github.com/pulseboard/pulseboard/internal/domain/model"
	"github.com/pulseboard/pulseboard/pkg/logger"
	"github.com/pulseboard/pulseboard/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// FileStore implements Store with an in-memory map mirrored to a JSON file.
// The file is rewritten whole on every mutation via a temp file and rename,
// so readers never observe a partially written credential set.
type FileStore struct {
	mu    sync.RWMutex
	creds map[Key]model.Credential

	path      string
	exchanger Exchanger
	logger    logger.Logger

	refreshGroup singleflight.Group
}

// NewFileStore creates a credential store with configuration options. If a
// file path is configured and the file exists, its contents seed the store.
func NewFileStore(opts ...Option) (*FileStore, error) {
	s := &FileStore{
		creds: make(map[Key]model.Credential),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}

	metrics.UpdateConnectedTenants(len(s.creds))

	return s, nil
}

// Get returns the active credential for the key.
func (s *FileStore) Get(ctx context.Context, key Key) (model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[key]
	if !ok {
		return model.Credential{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return cred, nil
}

// Set replaces the credential for the key atomically and persists it.
func (s *FileStore) Set(ctx context.Context, key Key, cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[key] = cred
	metrics.UpdateConnectedTenants(len(s.creds))

	return s.persistLocked(ctx)
}

// Delete disconnects the tenant.
func (s *FileStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.creds[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	delete(s.creds, key)
	metrics.UpdateConnectedTenants(len(s.creds))

	return s.persistLocked(ctx)
}

// Refresh exchanges the stored refresh token for a new credential.
// Concurrent callers for the same key are coalesced onto one exchange and
// all receive its result.
func (s *FileStore) Refresh(ctx context.Context, key Key) (model.Credential, error) {
	result, err, shared := s.refreshGroup.Do(key.String(), func() (interface{}, error) {
		return s.doRefresh(ctx, key)
	})
	if shared {
		metrics.RecordTokenRefreshCoalesced()
	}
	if err != nil {
		return model.Credential{}, err
	}

	cred, ok := result.(model.Credential)
	if !ok {
		return model.Credential{}, fmt.Errorf("unexpected refresh result type %T", result)
	}

	return cred, nil
}

func (s *FileStore) doRefresh(ctx context.Context, key Key) (model.Credential, error) {
	if s.exchanger == nil {
		return model.Credential{}, ErrNoExchanger
	}

	current, err := s.Get(ctx, key)
	if err != nil {
		return model.Credential{}, err
	}
	if current.RefreshToken == "" {
		return model.Credential{}, fmt.Errorf("%w: %s", ErrNoRefreshToken, key)
	}

	fresh, err := s.exchanger.ExchangeRefreshToken(ctx, current.RefreshToken)
	if err != nil {
		// The stored credential stays untouched so a transient failure can
		// be retried against the prior token.
		metrics.RecordTokenRefreshFailure()
		s.logger.Warn(ctx, "token refresh failed",
			logger.String("key", key.String()),
			logger.Error(err),
		)
		return model.Credential{}, fmt.Errorf("refresh %s: %w", key, err)
	}

	// The platform may omit a rotated refresh token; keep the old one.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}
	if fresh.AuthClass == "" {
		fresh.AuthClass = current.AuthClass
	}
	if fresh.LocationID == "" {
		fresh.LocationID = current.LocationID
	}

	if err := s.Set(ctx, key, fresh); err != nil {
		return model.Credential{}, fmt.Errorf("persist refreshed credential: %w", err)
	}

	metrics.RecordTokenRefresh()
	s.logger.Info(ctx, "credential refreshed", logger.String("key", key.String()))

	return fresh, nil
}

// Keys returns every connected credential slot in stable order.
func (s *FileStore) Keys(ctx context.Context) []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.creds))
	for k := range s.creds {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Platform != keys[j].Platform {
			return keys[i].Platform < keys[j].Platform
		}
		return keys[i].Tenant < keys[j].Tenant
	})

	return keys
}

// Count returns the number of connected tenants.
func (s *FileStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.creds)
}

// fileEntry is the on-disk shape of one credential slot.
type fileEntry struct {
	Platform   string           `json:"platform"`
	Tenant     string           `json:"tenant"`
	Credential model.Credential `json:"credential"`
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read credential file: %w", err)
	}

	var entries []fileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse credential file %s: %w", s.path, err)
	}

	for _, e := range entries {
		s.creds[Key{Platform: e.Platform, Tenant: e.Tenant}] = e.Credential
	}

	return nil
}

// persistLocked writes the full credential set to disk. Must be called with
// s.mu held. A nil path disables persistence.
func (s *FileStore) persistLocked(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	entries := make([]fileEntry, 0, len(s.creds))
	for k, c := range s.creds {
		entries = append(entries, fileEntry{Platform: k.Platform, Tenant: k.Tenant, Credential: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Platform != entries[j].Platform {
			return entries[i].Platform < entries[j].Platform
		}
		return entries[i].Tenant < entries[j].Tenant
	})

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace credential file: %w", err)
	}

	return nil
}
