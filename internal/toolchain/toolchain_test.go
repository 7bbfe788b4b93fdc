package toolchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProber(available map[string]string) *Prober {
	return &Prober{
		lookPath: func(name string) (string, error) {
			if _, ok := available[name]; ok {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		version: func(ctx context.Context, path string) (string, error) {
			for name, v := range available {
				if path == "/usr/bin/"+name {
					return v, nil
				}
			}
			return "", errors.New("no version")
		},
	}
}

func TestDetect_PrefersVersionedName(t *testing.T) {
	p := fakeProber(map[string]string{
		"python3.12": "3.12.1",
		"python3":    "3.12.1",
		"python":     "2.7.18",
	})

	info, err := p.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "python3.12", info.Command)
	assert.Equal(t, "/usr/bin/python3.12", info.Path)
	assert.Equal(t, "3.12.1", info.Version)
}

func TestDetect_FallsBackToGenericAlias(t *testing.T) {
	p := fakeProber(map[string]string{"python": "3.9.7"})

	info, err := p.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "python", info.Command)
}

func TestDetect_NothingOnPath(t *testing.T) {
	p := fakeProber(nil)

	_, err := p.Detect(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDetect_SkipsBrokenInterpreter(t *testing.T) {
	p := &Prober{
		lookPath: func(name string) (string, error) {
			if name == "python3" || name == "python" {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		version: func(ctx context.Context, path string) (string, error) {
			if path == "/usr/bin/python3" {
				return "", errors.New("exec format error")
			}
			return "3.10.2", nil
		},
	}

	info, err := p.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "python", info.Command)
	assert.Equal(t, "3.10.2", info.Version)
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		version    string
		constraint string
		expected   bool
	}{
		{"3.12.1", ">= 3.9", true},
		{"3.9.0", ">= 3.9", true},
		{"3.8.10", ">= 3.9", false},
		{"2.7.18", ">= 3.9", false},
		{"3.12", ">= 3.9", true},
		{"garbage", ">= 3.9", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			ok, err := Info{Version: tt.version}.AtLeast(tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestAtLeast_BadConstraint(t *testing.T) {
	_, err := Info{Version: "3.12.1"}.AtLeast(">>>")
	assert.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		out      string
		expected string
	}{
		{"Python 3.12.1\n", "3.12.1"},
		{"Python 2.7.18", "2.7.18"},
		{"", ""},
		{"no digits here", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseVersion(tt.out))
	}
}
