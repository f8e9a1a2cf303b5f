package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/auth"
	"github.com/pixil98/go-plaza/internal/quests"
)

type AuthConfig struct {
	Secret        string `json:"secret,omitempty" jsonschema:"description=Token signing secret; 16 to 64 bytes; tokens are not accepted when empty"`
	RequireAuth   bool   `json:"require_auth,omitempty"`
	GuestFallback *bool  `json:"guest_fallback,omitempty" jsonschema:"description=Admit failed or missing tokens as guests; default true"`
}

func (c *AuthConfig) validate() error {
	el := errors.NewErrorList()

	if c.Secret != "" {
		if _, err := auth.NewHMAC(c.Secret); err != nil {
			el.Add(fmt.Errorf("auth: %w", err))
		}
	}
	if c.RequireAuth && c.Secret == "" && !c.guestFallback() {
		el.Add(fmt.Errorf("auth: require_auth without guest_fallback needs a secret"))
	}

	return el.Err()
}

func (c *AuthConfig) guestFallback() bool {
	if c.GuestFallback == nil {
		return true
	}
	return *c.GuestFallback
}

// buildVerifier returns nil when no secret is configured.
func (c *AuthConfig) buildVerifier() (*auth.HMAC, error) {
	if c.Secret == "" {
		return nil, nil
	}
	return auth.NewHMAC(c.Secret)
}

type VoiceConfig struct {
	URL string `json:"url,omitempty" jsonschema:"description=Voice backend URL handed to clients; voice is disabled when empty"`
}

type LedgerConfig struct {
	QueueSize int `json:"queue_size,omitempty" jsonschema:"description=Pending ledger jobs before new ones are dropped; default 1024"`
}

func (c *LedgerConfig) validate() error {
	if c.QueueSize < 0 {
		return fmt.Errorf("ledger: queue_size must not be negative")
	}
	return nil
}

func (c *LedgerConfig) buildQueue() *quests.Queue {
	return quests.NewQueue(c.QueueSize)
}
