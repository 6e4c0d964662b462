// Package credentials owns the OAuth material for every connected tenant.
package credentials

import "github.com/pulseboard/pulseboard/pkg/logger"

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithFile sets the path used to persist credentials between restarts.
// An empty path keeps the store memory-only.
func WithFile(path string) Option {
	return func(s *FileStore) {
		s.path = path
	}
}

// WithExchanger sets the token exchanger used by Refresh.
func WithExchanger(ex Exchanger) Option {
	return func(s *FileStore) {
		s.exchanger = ex
	}
}

// WithLogger sets the store's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}
