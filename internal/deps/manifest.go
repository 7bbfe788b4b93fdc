package deps

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Requirement is a single declared dependency. Constraint uses the manifest's
// native operator syntax ("==1.2.3", ">=1.0,<2.0"); empty means any version.
type Requirement struct {
	Name       string
	Constraint string
}

// Spec returns the requirement in manifest syntax, suitable for the installer.
func (r Requirement) Spec() string {
	return r.Name + r.Constraint
}

// Fallback is the dependency set used when no manifest exists. It mirrors
// the backend's documented runtime requirements.
func Fallback() []Requirement {
	return []Requirement{
		{Name: "fastapi", Constraint: ">=0.104"},
		{Name: "uvicorn", Constraint: ">=0.24"},
		{Name: "sqlalchemy", Constraint: ">=2.0"},
		{Name: "alembic", Constraint: ">=1.12"},
		{Name: "asyncpg", Constraint: ""},
		{Name: "aiosqlite", Constraint: ""},
		{Name: "python-jose", Constraint: ""},
		{Name: "passlib", Constraint: ""},
		{Name: "python-multipart", Constraint: ""},
	}
}

// LoadManifest parses an ordered requirements file. A missing file is not an
// error here; the caller decides whether to fall back.
func LoadManifest(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reqs []Requirement
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Strip trailing comments.
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		req, err := parseRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return reqs, nil
}

// constraint operators in the order they must be matched (two-char first).
var operators = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

func parseRequirement(line string) (Requirement, error) {
	for i, r := range line {
		if strings.ContainsRune("=<>~!", r) {
			name := strings.TrimSpace(line[:i])
			constraint := strings.TrimSpace(line[i:])
			if name == "" {
				return Requirement{}, fmt.Errorf("invalid requirement %q", line)
			}
			if !validConstraint(constraint) {
				return Requirement{}, fmt.Errorf("invalid version constraint %q", constraint)
			}
			return Requirement{Name: name, Constraint: constraint}, nil
		}
	}
	name := strings.TrimSpace(line)
	if strings.ContainsAny(name, " \t") {
		return Requirement{}, fmt.Errorf("invalid requirement %q", line)
	}
	return Requirement{Name: name, Constraint: ""}, nil
}

func validConstraint(constraint string) bool {
	for _, part := range strings.Split(constraint, ",") {
		part = strings.TrimSpace(part)
		ok := false
		for _, op := range operators {
			if strings.HasPrefix(part, op) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Satisfies reports whether an installed version meets the requirement.
// "*" semantics: an empty constraint is satisfied by any installed version.
// Unparsable versions or constraints count as unsatisfied so the installer
// re-installs rather than silently skipping.
func (r Requirement) Satisfies(installed string) bool {
	if installed == "" {
		return false
	}
	if r.Constraint == "" {
		return true
	}
	c, err := semver.NewConstraint(toSemverConstraint(r.Constraint))
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(installed)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// toSemverConstraint maps manifest operators onto semver constraint syntax.
// "==" becomes "=". "~=" (compatible release) pins everything but the last
// declared component: "~=1.4" allows <2.0, "~=1.4.5" allows <1.5.0.
func toSemverConstraint(constraint string) string {
	parts := strings.Split(constraint, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "=="):
			part = "=" + part[2:]
		case strings.HasPrefix(part, "~="):
			rest := part[2:]
			if strings.Count(rest, ".") >= 2 {
				part = "~" + rest
			} else {
				part = "^" + rest
			}
		}
		parts[i] = part
	}
	return strings.Join(parts, ", ")
}
