package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the OS keychain service name for stored tokens.
const DefaultKeyringService = "com.erauner.tasksync"

// Keyring keeps the token in the OS keychain. The token is cached after the
// first read until Invalidate.
type Keyring struct {
	Service string
	Account string

	mu     sync.Mutex
	cached string
	now    func() time.Time
}

// NewKeyring returns a keychain-backed source for account.
func NewKeyring(service, account string) *Keyring {
	if service == "" {
		service = DefaultKeyringService
	}
	return &Keyring{Service: service, Account: account, now: time.Now}
}

// Store saves tok in the keychain and replaces the cached copy.
func (k *Keyring) Store(tok string) error {
	if err := keyring.Set(k.Service, k.Account, tok); err != nil {
		log.Debug().
			Err(err).
			Str("account", k.Account).
			Msg("keyring not available, token not stored")
		return fmt.Errorf("store token in keyring: %w", err)
	}

	k.mu.Lock()
	k.cached = tok
	k.mu.Unlock()

	log.Debug().Str("account", k.Account).Msg("token stored in keyring")
	return nil
}

func (k *Keyring) Token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cached == "" {
		tok, err := keyring.Get(k.Service, k.Account)
		if errors.Is(err, keyring.ErrNotFound) {
			log.Debug().Str("account", k.Account).Msg("no token found in keyring")
			return "", ErrNoCredential
		}
		if err != nil {
			return "", fmt.Errorf("read token from keyring: %w", err)
		}
		k.cached = tok
	}

	tok, err := usable(k.cached, k.now())
	if err != nil {
		k.cached = ""
	}
	return tok, err
}

func (k *Keyring) Invalidate() {
	k.mu.Lock()
	k.cached = ""
	k.mu.Unlock()
}

// Delete removes the token from the keychain. A missing entry is not an error.
func (k *Keyring) Delete() error {
	k.Invalidate()
	if err := keyring.Delete(k.Service, k.Account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete token from keyring: %w", err)
	}
	log.Debug().Str("account", k.Account).Msg("token deleted from keyring")
	return nil
}
