package envfile

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/onestopradio/stationctl/internal/logging"
)

// Entry is one persisted configuration value. Sensitive entries are masked
// by the redacted view regardless of their key.
type Entry struct {
	Key       string
	Value     string
	Sensitive bool
}

// Snapshot is the parsed content of a configuration file.
type Snapshot struct {
	Path       string
	Entries    []Entry
	WasCreated bool
}

// secretKeyPattern flags keys whose values must never be displayed, even
// when the entry itself was not marked sensitive.
var secretKeyPattern = regexp.MustCompile(`(?i)(SECRET|PASSWORD|TOKEN|CREDENTIAL|(^|_)KEY($|_))`)

// Defaults returns the documented first-run configuration. Secret values are
// deliberately fake placeholders the operator must replace.
func Defaults() []Entry {
	return []Entry{
		{Key: "SECRET_KEY", Value: "change-me-generated-placeholder", Sensitive: true},
		{Key: "DATABASE_URL", Value: "sqlite://onestopradio.db", Sensitive: true},
		{Key: "PORT", Value: "8000"},
		{Key: "DEBUG", Value: "false"},
		{Key: "ACCESS_TOKEN_EXPIRE_MINUTES", Value: "60"},
		{Key: "REFRESH_TOKEN_EXPIRE_DAYS", Value: "7"},
		{Key: "CORS_ORIGINS", Value: "http://localhost:3000,http://127.0.0.1:3000"},
		{Key: "MAX_UPLOAD_SIZE", Value: "10485760"},
		{Key: "UPLOAD_DIR", Value: "static/uploads"},
	}
}

// Ensure guarantees a configuration file exists at path. A missing file is
// created with the documented defaults; an existing file is parsed and
// returned untouched, byte for byte.
func Ensure(path string) (Snapshot, error) {
	snap, err := Load(path)
	if err == nil {
		return snap, nil
	}
	if !os.IsNotExist(err) {
		return Snapshot{}, err
	}

	entries := Defaults()
	if err := os.WriteFile(path, render(entries), 0600); err != nil {
		return Snapshot{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Info("created configuration file with defaults", "path", path)
	return Snapshot{Path: path, Entries: entries, WasCreated: true}, nil
}

// Load parses an existing configuration file.
func Load(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: path, Entries: parse(string(raw))}, nil
}

func parse(raw string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		entries = append(entries, Entry{
			Key:       key,
			Value:     strings.TrimSpace(value),
			Sensitive: secretKeyPattern.MatchString(key),
		})
	}
	return entries
}

func render(entries []Entry) []byte {
	var b strings.Builder
	b.WriteString("# OneStopRadio backend configuration\n")
	b.WriteString("# Generated by stationctl; values marked as placeholders must be replaced\n")
	b.WriteString("# before production use.\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s=%s\n", e.Key, e.Value)
	}
	return []byte(b.String())
}

// Redacted renders a display view of the snapshot with sensitive values
// masked and output bounded to maxLines entries. It is a pure projection:
// neither the snapshot nor the file is modified.
func Redacted(snap Snapshot, maxLines int) string {
	var b strings.Builder
	shown := 0
	for _, e := range snap.Entries {
		if maxLines > 0 && shown >= maxLines {
			fmt.Fprintf(&b, "... (%d more entries)\n", len(snap.Entries)-shown)
			break
		}
		value := e.Value
		if e.Sensitive || secretKeyPattern.MatchString(e.Key) {
			value = "********"
		}
		fmt.Fprintf(&b, "%s=%s\n", e.Key, value)
		shown++
	}
	return b.String()
}

// Env renders the snapshot as KEY=VALUE pairs for a child process
// environment.
func Env(snap Snapshot) []string {
	out := make([]string, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		out = append(out, e.Key+"="+e.Value)
	}
	return out
}
