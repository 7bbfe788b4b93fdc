package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the optional per-project settings file.
const DefaultFileName = "stationctl.yaml"

// Duration is a time.Duration that unmarshals from yaml strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard-library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Settings holds everything the bootstrap pipeline needs to know about a
// project checkout. Defaults are declared centrally in Defaults; the project
// file and environment variables only override.
type Settings struct {
	// ProjectDir is the checkout root all relative paths resolve against.
	// It is set by Load, never by the settings file.
	ProjectDir string `yaml:"-"`

	SandboxDir   string `yaml:"sandbox_dir"`
	ManifestPath string `yaml:"manifest"`
	EnvFilePath  string `yaml:"env_file"`

	// DatabaseURL targets the migration store: postgres://... for a
	// networked store, sqlite://path (or a bare path) for an embedded one.
	DatabaseURL string `yaml:"database_url"`

	ServerHost string `yaml:"server_host"`
	ServerPort int    `yaml:"server_port"`

	// StartCommand overrides the command used to launch the service for the
	// smoke test. Empty means "derive from the sandbox interpreter".
	StartCommand []string `yaml:"start_command"`

	ProbePath    string   `yaml:"probe_path"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
	GracePeriod  Duration `yaml:"grace_period"`
	SkipSmoke    bool     `yaml:"skip_smoke"`
}

// Defaults returns the built-in settings for a project directory.
func Defaults(projectDir string) *Settings {
	return &Settings{
		ProjectDir:   projectDir,
		SandboxDir:   "venv",
		ManifestPath: "requirements.txt",
		EnvFilePath:  ".env",
		DatabaseURL:  "sqlite://onestopradio.db",
		ServerHost:   "127.0.0.1",
		ServerPort:   8000,
		ProbePath:    "/health",
		ProbeTimeout: Duration(5 * time.Second),
		GracePeriod:  Duration(3 * time.Second),
	}
}

// Load builds the effective settings for projectDir: defaults, then the
// stationctl.yaml file when present, then environment variable overrides.
func Load(projectDir string) (*Settings, error) {
	s := Defaults(projectDir)

	path := filepath.Join(projectDir, DefaultFileName)
	raw, err := os.ReadFile(path)
	if err == nil {
		dec := yaml.NewDecoder(strings.NewReader(string(raw)))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		s.ProjectDir = projectDir
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	return s, nil
}

// applyEnv layers process environment overrides on top of file settings.
// These are the variables the original deployment platform injects.
func (s *Settings) applyEnv() error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		s.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT value %q: %w", v, err)
		}
		s.ServerPort = port
	}
	return nil
}

// SandboxPath returns the absolute sandbox root.
func (s *Settings) SandboxPath() string {
	return s.abs(s.SandboxDir)
}

// ManifestAbsPath returns the absolute dependency manifest path.
func (s *Settings) ManifestAbsPath() string {
	return s.abs(s.ManifestPath)
}

// EnvFileAbsPath returns the absolute configuration file path.
func (s *Settings) EnvFileAbsPath() string {
	return s.abs(s.EnvFilePath)
}

// ResolvedDatabaseURL rewrites relative sqlite paths against the project
// directory so the orchestrator works regardless of the caller's cwd.
func (s *Settings) ResolvedDatabaseURL() string {
	u := s.DatabaseURL
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return u
	case strings.HasPrefix(u, "sqlite://"):
		return "sqlite://" + s.abs(strings.TrimPrefix(u, "sqlite://"))
	default:
		return s.abs(u)
	}
}

// ProbeURL returns the liveness endpoint derived from host, port and path.
func (s *Settings) ProbeURL() string {
	return fmt.Sprintf("http://%s:%d%s", s.ServerHost, s.ServerPort, s.ProbePath)
}

// ServiceCommand returns the command that launches the backend for the smoke
// test. The sandbox interpreter is used unless the settings file overrides it.
func (s *Settings) ServiceCommand(python string) []string {
	if len(s.StartCommand) > 0 {
		return s.StartCommand
	}
	return []string{
		python, "-m", "uvicorn", "app.main:app",
		"--host", s.ServerHost,
		"--port", strconv.Itoa(s.ServerPort),
	}
}

func (s *Settings) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.ProjectDir, p)
}
