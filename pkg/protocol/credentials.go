package protocol

import (
	"strings"
	"sync"
)

// MaskedKey is shown to the host in place of a stored key.
const MaskedKey = "sk-or-v1-" + "********************"

// Credentials stores the API key used for runs and catalog calls.
type Credentials interface {
	// Get returns the stored key, or "" when none is set.
	Get() (string, error)
	Set(key string) error
	Clear() error
}

// MemoryCredentials keeps the key in process memory.
type MemoryCredentials struct {
	mu  sync.Mutex
	key string
}

// NewMemoryCredentials returns credentials seeded with key.
func NewMemoryCredentials(key string) *MemoryCredentials {
	return &MemoryCredentials{key: strings.TrimSpace(key)}
}

func (m *MemoryCredentials) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key, nil
}

func (m *MemoryCredentials) Set(key string) error {
	m.mu.Lock()
	m.key = strings.TrimSpace(key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCredentials) Clear() error {
	return m.Set("")
}

// Mask returns the display form of key.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	return MaskedKey
}
