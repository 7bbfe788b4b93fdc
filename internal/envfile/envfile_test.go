package envfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsure_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	snap, err := Ensure(path)
	require.NoError(t, err)

	assert.True(t, snap.WasCreated)
	assert.NotEmpty(t, snap.Entries)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "SECRET_KEY=change-me-generated-placeholder")
	assert.Contains(t, string(raw), "PORT=8000")
}

func TestEnsure_NeverOverwritesUserEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	userContent := "SECRET_KEY=my-real-secret\nPORT=9999\n"
	require.NoError(t, os.WriteFile(path, []byte(userContent), 0600))

	snap, err := Ensure(path)
	require.NoError(t, err)

	assert.False(t, snap.WasCreated)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, userContent, string(raw), "existing file must be preserved byte for byte")

	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "my-real-secret", snap.Entries[0].Value)
}

func TestEnsure_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	first, err := Ensure(path)
	require.NoError(t, err)
	raw1, err := os.ReadFile(path)
	require.NoError(t, err)

	second, err := Ensure(path)
	require.NoError(t, err)
	raw2, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.True(t, first.WasCreated)
	assert.False(t, second.WasCreated)
	assert.Equal(t, raw1, raw2)
}

func TestParse(t *testing.T) {
	raw := `# comment
SECRET_KEY=abc

DEBUG = true
MALFORMED LINE
DATABASE_URL=postgres://u:p@host/db
`
	entries := parse(raw)

	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Key: "SECRET_KEY", Value: "abc", Sensitive: true}, entries[0])
	assert.Equal(t, Entry{Key: "DEBUG", Value: "true", Sensitive: false}, entries[1])
	assert.Equal(t, "DATABASE_URL", entries[2].Key)
}

func TestRedacted_MasksSecretLikeKeys(t *testing.T) {
	secretKeys := []string{
		"SECRET_KEY", "JWT_SECRET", "DB_PASSWORD", "password",
		"API_TOKEN", "AWS_CREDENTIALS", "KEY", "SIGNING_KEY", "KEY_ID",
	}

	var entries []Entry
	for _, k := range secretKeys {
		entries = append(entries, Entry{Key: k, Value: "super-secret-value"})
	}
	entries = append(entries, Entry{Key: "PORT", Value: "8000"})

	out := Redacted(Snapshot{Entries: entries}, 0)

	assert.NotContains(t, out, "super-secret-value")
	assert.Contains(t, out, "PORT=8000")
	for _, k := range secretKeys {
		assert.Contains(t, out, k+"=********")
	}
}

func TestRedacted_MasksFlaggedEntries(t *testing.T) {
	snap := Snapshot{Entries: []Entry{
		{Key: "INNOCUOUS_NAME", Value: "actually-sensitive", Sensitive: true},
	}}

	out := Redacted(snap, 0)
	assert.Equal(t, "INNOCUOUS_NAME=********\n", out)
}

func TestRedacted_Bounded(t *testing.T) {
	var entries []Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, Entry{Key: "K" + strings.Repeat("X", i), Value: "v"})
	}

	out := Redacted(Snapshot{Entries: entries}, 5)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 6) // 5 entries + elision marker
	assert.Contains(t, lines[5], "15 more entries")
}

func TestRedacted_DoesNotTouchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	snap, err := Ensure(path)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_ = Redacted(snap, 3)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEnv(t *testing.T) {
	snap := Snapshot{Entries: []Entry{
		{Key: "PORT", Value: "8000"},
		{Key: "DEBUG", Value: "false"},
	}}
	assert.Equal(t, []string{"PORT=8000", "DEBUG=false"}, Env(snap))
}
