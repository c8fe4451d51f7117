package auth

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	// KeyPrefix identifies PromptVault API keys
	KeyPrefix = "pv_"
	// KeyLength is the number of random bytes in a key (32 bytes = 256 bits)
	KeyLength = 32
	// encodedKeyLength is the base64url length of KeyLength bytes without padding
	encodedKeyLength = 43
)

// Environment selects the key family
type Environment string

const (
	EnvironmentLive Environment = "live"
	EnvironmentTest Environment = "test"
)

// randReader is swapped in tests to simulate entropy failure
var randReader io.Reader = rand.Reader

// GenerateAPIKey creates a new API key
// Format: pv_<env>_<base64url(32 random bytes)>
// Example: pv_live_Q2hhbmdlIG1lIGFueSB0aW1lLi4u...
func GenerateAPIKey(env Environment) (string, error) {
	if env != EnvironmentLive && env != EnvironmentTest {
		return "", fmt.Errorf("invalid environment %q: must be live or test", env)
	}

	randomBytes := make([]byte, KeyLength)
	if _, err := io.ReadFull(randReader, randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return KeyPrefix + string(env) + "_" + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// HashAPIKey computes the SHA256 hash of a key for storage and lookup
func HashAPIKey(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(hash[:])
}

// HashParameters computes a stable digest of a parameter set.
// The map is serialized as a JSON object with sorted keys, so the digest
// only depends on the logical content of the map. Keys and values must be
// valid UTF-8: the encoder would otherwise fold distinct byte strings into
// the same replacement character.
func HashParameters(params map[string]string) (string, error) {
	if params == nil {
		params = map[string]string{}
	}
	for k, v := range params {
		if !utf8.ValidString(k) {
			return "", fmt.Errorf("parameter name %q is not valid UTF-8", k)
		}
		if !utf8.ValidString(v) {
			return "", fmt.Errorf("parameter %q is not valid UTF-8", k)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// encoding/json writes map keys in sorted order
	if err := enc.Encode(params); err != nil {
		return "", fmt.Errorf("failed to serialize parameters: %w", err)
	}

	hash := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(hash[:]), nil
}

// ValidateKeyFormat checks if a key has the pv_<env>_<body> shape
func ValidateKeyFormat(key string) error {
	if !strings.HasPrefix(key, KeyPrefix) {
		return fmt.Errorf("key must start with %q", KeyPrefix)
	}

	rest := strings.TrimPrefix(key, KeyPrefix)
	env, body, ok := strings.Cut(rest, "_")
	if !ok {
		return fmt.Errorf("key is missing environment segment")
	}
	if Environment(env) != EnvironmentLive && Environment(env) != EnvironmentTest {
		return fmt.Errorf("unknown key environment %q", env)
	}
	if len(body) != encodedKeyLength {
		return fmt.Errorf("key body must be %d characters, got %d", encodedKeyLength, len(body))
	}

	// Decode to verify it's valid base64url
	if _, err := base64.RawURLEncoding.DecodeString(body); err != nil {
		return fmt.Errorf("invalid key encoding: %w", err)
	}

	return nil
}

// KeyDisplayPrefix extracts the part of a key that is safe to display
func KeyDisplayPrefix(key string) string {
	if err := ValidateKeyFormat(key); err != nil {
		return ""
	}
	// Body may itself contain '_', so cut on the first separator after the prefix
	env, _, _ := strings.Cut(strings.TrimPrefix(key, KeyPrefix), "_")
	return key[:len(KeyPrefix)+len(env)+1+8]
}
