package bootstrap

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/popmap/popmap-api/internal/data/cryptoutil"
)

// CreateEncryptor builds the encryptor that seals session refresh
// tokens before they are stored. A 64-character hex key is used as the
// raw AES-256 key; any other non-empty value is stretched through
// SHA-256. Without a usable key the noop encryptor stands in, keeping
// login functional while the warning flags that tokens are stored
// unencrypted.
//
//nolint:ireturn // Implementation depends on whether a key is configured.
func CreateEncryptor(key string, logger *slog.Logger) cryptoutil.Encryptor {
	if key == "" {
		if logger != nil {
			logger.Warn("session encryption key is empty, storing tokens unencrypted")
		}
		return &cryptoutil.NoopEncryptor{}
	}

	enc, err := cryptoutil.NewAESGCMEncryptor(deriveSessionKey(key))
	if err != nil {
		if logger != nil {
			logger.Warn("session encryptor unavailable, storing tokens unencrypted", "error", err)
		}
		return &cryptoutil.NoopEncryptor{}
	}
	return enc
}

// deriveSessionKey turns the configured string into 32 key bytes.
func deriveSessionKey(key string) []byte {
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
		return decoded
	}
	hash := sha256.Sum256([]byte(key))
	return hash[:]
}
