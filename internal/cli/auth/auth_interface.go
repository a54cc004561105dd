package auth

import (
	"errors"
	"fmt"
)

// Keys under which the credential pair is persisted
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Store kinds accepted by New
const (
	KindKeyring = "keyring"
	KindFile    = "file"
	KindSQLite  = "sqlite"
	KindMemory  = "memory"
)

// ErrNotFound is returned by Get when nothing is stored under the key
var ErrNotFound = errors.New("token not found")

// Store defines the interface for token persistence.
// This allows the storage mechanism to be swapped per platform and mocked in tests.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Clear(key string) error
}

// Options configures New
type Options struct {
	// Scope separates credentials of different API servers (usually the API host)
	Scope string
	// Dir holds the file and sqlite backends
	Dir string
}

// New creates a token store of the given kind
func New(kind string, opts Options) (Store, error) {
	switch kind {
	case KindKeyring, "":
		return NewKeyringStore(opts.Scope), nil
	case KindFile:
		return NewFileStore(opts.Dir, opts.Scope)
	case KindSQLite:
		return NewSQLiteStore(opts.Dir, opts.Scope)
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}

// ClearAll removes both tokens. Keys that were never stored are not an error.
func ClearAll(s Store) error {
	var errs []error
	for _, key := range []string{AccessTokenKey, RefreshTokenKey} {
		if err := s.Clear(key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the stored value or "" when the key is absent
func Lookup(s Store, key string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
