package auth

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	for _, env := range []Environment{EnvironmentLive, EnvironmentTest} {
		t.Run(string(env), func(t *testing.T) {
			key, err := GenerateAPIKey(env)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(key, KeyPrefix+string(env)+"_"))
			assert.Len(t, key, len(KeyPrefix)+len(env)+1+encodedKeyLength)
			assert.NoError(t, ValidateKeyFormat(key))
		})
	}
}

func TestGenerateAPIKey_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateAPIKey(EnvironmentLive)
		require.NoError(t, err)
		require.False(t, seen[key], "duplicate key generated")
		seen[key] = true
	}
}

func TestGenerateAPIKey_DeterministicReader(t *testing.T) {
	orig := randReader
	defer func() { randReader = orig }()

	randReader = bytes.NewReader(make([]byte, KeyLength))
	key, err := GenerateAPIKey(EnvironmentTest)
	require.NoError(t, err)
	assert.Equal(t, "pv_test_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", key)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateAPIKey_Errors(t *testing.T) {
	_, err := GenerateAPIKey("staging")
	assert.Error(t, err)

	orig := randReader
	defer func() { randReader = orig }()

	randReader = failingReader{}
	_, err = GenerateAPIKey(EnvironmentLive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")

	// A short read is a failure too
	randReader = bytes.NewReader(make([]byte, KeyLength-1))
	_, err = GenerateAPIKey(EnvironmentLive)
	assert.Error(t, err)
}

func TestHashAPIKey(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashAPIKey(""))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashAPIKey("abc"))
	assert.Equal(t, "feb836a8b4f82096f00eaa27c98e76b63fd73ac5b9e69a35a9ad74028879eaa7",
		HashAPIKey("pv_test_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))

	// Lowercase hex throughout
	assert.Equal(t, strings.ToLower(HashAPIKey("X")), HashAPIKey("X"))
}

func TestHashParameters(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{
			name:   "nil map hashes as an empty object",
			params: nil,
			want:   "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a",
		},
		{
			name:   "empty map",
			params: map[string]string{},
			want:   "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a",
		},
		{
			name:   "keys are sorted",
			params: map[string]string{"b": "2", "a": "1"},
			want:   "21f76dfbfe6dfe21f762080ef484112cf2952974cef30741fd1931e1c6d92112",
		},
		{
			name:   "html characters are not escaped",
			params: map[string]string{"q": "<b>&</b>"},
			want:   "638d52173f0c743d81898898271eb995707123d4fa3195aea622b9d9dea1604d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HashParameters(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashParameters_OrderIndependent(t *testing.T) {
	a := map[string]string{}
	b := map[string]string{}
	keys := []string{"tone", "audience", "length", "language", "format"}
	for i, k := range keys {
		a[k] = k + "-value"
		b[keys[len(keys)-1-i]] = keys[len(keys)-1-i] + "-value"
	}

	ha, err := HashParameters(a)
	require.NoError(t, err)
	hb, err := HashParameters(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b["tone"] = "different"
	hc, err := HashParameters(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestHashParameters_RejectsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
	}{
		{"invalid value", map[string]string{"a": "\xff"}},
		{"other invalid value", map[string]string{"a": "\xfe"}},
		{"invalid name", map[string]string{"\xff": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashParameters(tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not valid UTF-8")
			assert.Empty(t, hash)
		})
	}

	// A valid replacement character is still accepted as ordinary text
	hash, err := HashParameters(map[string]string{"a": "\uFFFD"})
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestValidateKeyFormat(t *testing.T) {
	valid := "pv_live_" + strings.Repeat("A", encodedKeyLength)

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid live key", valid, false},
		{"valid test key", "pv_test_" + strings.Repeat("_", encodedKeyLength), false},
		{"wrong prefix", "sk_live_" + strings.Repeat("A", encodedKeyLength), true},
		{"missing environment", "pv_" + strings.Repeat("A", encodedKeyLength), true},
		{"unknown environment", "pv_prod_" + strings.Repeat("A", encodedKeyLength), true},
		{"short body", "pv_live_abc", true},
		{"invalid characters", "pv_live_" + strings.Repeat("+", encodedKeyLength), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeyFormat(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKeyDisplayPrefix(t *testing.T) {
	assert.Equal(t, "pv_live_AAECAwQF", KeyDisplayPrefix("pv_live_AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8"))
	assert.Equal(t, "pv_test___AbCdEf", KeyDisplayPrefix("pv_test___AbCdEf"+strings.Repeat("x", encodedKeyLength-8)))
	assert.Empty(t, KeyDisplayPrefix("not-a-key"))
}
