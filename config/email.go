package config

import (
	"fmt"
	"strings"
	"time"
)

// EmailMode selects the outbound email transport.
type EmailMode string

const (
	// EmailModeLog writes messages to the application log (development).
	EmailModeLog EmailMode = "log"
	// EmailModeRelay posts messages to an HTTP relay endpoint.
	EmailModeRelay EmailMode = "relay"
)

// UnmarshalText implements encoding.TextUnmarshaler for EmailMode.
func (m *EmailMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "log", "relay":
		*m = EmailMode(v)
		return nil
	default:
		return fmt.Errorf("invalid EmailMode: %q (valid options: log, relay)", v)
	}
}

// EmailConfig contains outbound email configuration.
type EmailConfig struct {
	// Mode selects the transport. "relay" requires RelayURL.
	Mode EmailMode `env:"MODE" envDefault:"log"`

	// RelayURL is the HTTP relay endpoint messages are POSTed to.
	RelayURL string `env:"RELAY_URL"`

	// RelayToken is the bearer token presented to the relay.
	RelayToken string `env:"RELAY_TOKEN"`

	// FromAddress and FromName populate the message sender.
	FromAddress string `env:"FROM_ADDRESS" envDefault:"hello@popmap.app"`
	FromName    string `env:"FROM_NAME"    envDefault:"PopMap"`

	// Timeout bounds a single relay request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// RetryLimit is the number of additional delivery attempts after the first.
	RetryLimit int `env:"RETRY_LIMIT" envDefault:"2"`
}

// Sanitize normalises email configuration values. A relay mode without a
// relay URL falls back to the log transport so mail never silently drops.
func (e *EmailConfig) Sanitize() {
	e.RelayURL = strings.TrimSpace(e.RelayURL)
	e.RelayToken = strings.TrimSpace(e.RelayToken)
	if e.Mode == EmailModeRelay && e.RelayURL == "" {
		e.Mode = EmailModeLog
	}
	if e.Timeout <= 0 {
		e.Timeout = 10 * time.Second
	}
	if e.RetryLimit < 0 {
		e.RetryLimit = 0
	}
	if strings.TrimSpace(e.FromAddress) == "" {
		e.FromAddress = "hello@popmap.app"
	}
}
