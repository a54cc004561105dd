package auth

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyFileName = "token.key"
	nonceSize   = 24
	keySize     = 32
)

// errUnreadable marks a token file that exists but can no longer be opened
var errUnreadable = errors.New("token file is unreadable")

var errBadKey = errors.New("token key file has wrong size")

// FileStore keeps tokens in a secretbox-sealed file under the user config directory.
// The sealing key lives next to it in a 0600 key file.
type FileStore struct {
	mu      sync.Mutex
	path    string
	keyPath string
}

// NewFileStore creates a file-backed store in dir (the user config dir when empty)
func NewFileStore(dir, scope string) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user config directory: %w", err)
		}
		dir = filepath.Join(base, "shelf")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	return &FileStore{
		path:    filepath.Join(dir, "tokens-"+safeScope(scope)+".enc"),
		keyPath: filepath.Join(dir, keyFileName),
	}, nil
}

// safeScope turns an API host into something usable in a file name
func safeScope(scope string) string {
	if scope == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, scope)
}

func (f *FileStore) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := tokens[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if errors.Is(err, errUnreadable) {
		// The old contents are lost either way
		if err := f.reset(); err != nil {
			return err
		}
		tokens = make(map[string]string)
	} else if err != nil {
		return err
	}
	tokens[key] = value
	return f.write(tokens)
}

func (f *FileStore) Clear(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if errors.Is(err, errUnreadable) {
		return f.reset()
	}
	if err != nil {
		return err
	}
	if _, ok := tokens[key]; !ok {
		return nil
	}
	delete(tokens, key)
	if len(tokens) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove token file: %w", err)
		}
		return nil
	}
	return f.write(tokens)
}

func (f *FileStore) read() (map[string]string, error) {
	tokens := make(map[string]string)

	sealed, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return tokens, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: truncated", errUnreadable)
	}

	key, err := f.loadKey(false)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, errBadKey) {
		return nil, fmt.Errorf("%w: %w", errUnreadable, err)
	}
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("%w: failed to decrypt token file", errUnreadable)
	}

	if err := json.Unmarshal(plain, &tokens); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token file: %w", errUnreadable, err)
	}
	return tokens, nil
}

// reset removes an unreadable token file. The shared key goes too when it is malformed.
func (f *FileStore) reset() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	if _, err := f.loadKey(false); errors.Is(err, errBadKey) {
		if err := os.Remove(f.keyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove token key: %w", err)
		}
	}
	return nil
}

func (f *FileStore) write(tokens map[string]string) error {
	plain, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	key, err := f.loadKey(true)
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, key)

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// loadKey reads the sealing key, generating it on first write
func (f *FileStore) loadKey(create bool) (*[keySize]byte, error) {
	var key [keySize]byte

	b, err := os.ReadFile(f.keyPath)
	switch {
	case err == nil:
		if len(b) != keySize {
			return nil, fmt.Errorf("%w: size %d", errBadKey, len(b))
		}
		copy(key[:], b)
		return &key, nil
	case errors.Is(err, os.ErrNotExist) && create:
		if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
			return nil, fmt.Errorf("failed to generate token key: %w", err)
		}
		if err := os.WriteFile(f.keyPath, key[:], 0o600); err != nil {
			return nil, fmt.Errorf("failed to write token key: %w", err)
		}
		return &key, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("token key file missing: %w", err)
	default:
		return nil, fmt.Errorf("failed to read token key: %w", err)
	}
}
