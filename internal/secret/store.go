// Package secret resolves publish target passwords that should not live in
// the config file.
//
// A password value of the form "scheme:key" is looked up in the store
// registered for scheme ("env" or "keychain"). Any other value is used as is.
package secret

import (
	"fmt"
	"os"
	"strings"
)

// SecretStore looks up sensitive values such as database passwords.
type SecretStore interface {
	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)
}

// EnvStore reads secrets from environment variables.
type EnvStore struct{}

func (EnvStore) Get(key string) ([]byte, error) {
	return []byte(os.Getenv(key)), nil
}

// Resolver maps reference schemes to stores.
type Resolver struct {
	stores map[string]SecretStore
}

// NewResolver returns a resolver for "env:" and "keychain:" references.
func NewResolver() *Resolver {
	return &Resolver{stores: map[string]SecretStore{
		"env":      EnvStore{},
		"keychain": NewKeychainStore(),
	}}
}

// Register adds or replaces the store for scheme.
func (r *Resolver) Register(scheme string, s SecretStore) {
	r.stores[scheme] = s
}

// Resolve returns the secret a value refers to. Plain values come back
// unchanged; a reference to a missing secret is an error.
func (r *Resolver) Resolve(value string) (string, error) {
	scheme, key, ok := strings.Cut(value, ":")
	if !ok {
		return value, nil
	}
	store, known := r.stores[scheme]
	if !known {
		return value, nil
	}
	if key == "" {
		return "", fmt.Errorf("secret reference %q has no key", value)
	}
	v, err := store.Get(key)
	if err != nil {
		return "", fmt.Errorf("%s secret %s: %w", scheme, key, err)
	}
	if len(v) == 0 {
		return "", fmt.Errorf("%s secret %s not found", scheme, key)
	}
	return string(v), nil
}
