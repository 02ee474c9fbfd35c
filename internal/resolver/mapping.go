package resolver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/steveyegge/trackport/internal/export"
	"github.com/steveyegge/trackport/internal/types"
)

// Mapping maps lower-case email addresses to target logins.
type Mapping map[string]string

// NewMapping validates m. Every key must already be lower case.
func NewMapping(m map[string]string) (Mapping, error) {
	out := make(Mapping, len(m))
	for email, login := range m {
		if email != strings.ToLower(email) {
			return nil, fmt.Errorf("expected all lower-case emails, but got %q", email)
		}
		if login == "" {
			return nil, fmt.Errorf("empty login for %q", email)
		}
		out[email] = login
	}
	return out, nil
}

// LoadUserMapping parses "email=login" lines. Emails are lower-cased. Blank
// lines and lines starting with # are ignored.
func LoadUserMapping(r io.Reader) (Mapping, error) {
	m := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		email, login, ok := strings.Cut(line, "=")
		email = strings.ToLower(strings.TrimSpace(email))
		login = strings.TrimSpace(login)
		if !ok || email == "" || login == "" {
			return nil, fmt.Errorf("line %d: expected email=login, got %q", lineNo, line)
		}
		if prev, dup := m[email]; dup && prev != login {
			return nil, fmt.Errorf("line %d: %s is mapped to both %q and %q", lineNo, email, prev, login)
		}
		m[email] = login
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user mapping: %w", err)
	}
	return NewMapping(m)
}

// LoadUserMappingFile reads a mapping file.
func LoadUserMappingFile(path string) (Mapping, error) {
	// #nosec G304 - path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user mapping: %w", err)
	}
	defer func() { _ = f.Close() }()
	m, err := LoadUserMapping(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// MissingLogins lists every email referenced by res that m has no login
// for. Emails differing only in case are merged.
func MissingLogins(res *export.Result, m Mapping) []export.MissingID {
	merged := types.NewOccurrenceMap()
	for _, email := range res.EmailOccurrences.Keys() {
		lower := strings.ToLower(email)
		for _, t := range res.EmailOccurrences.Tasks(email) {
			merged.Add(lower, t)
		}
	}
	return export.CheckReferences(merged, func(email string) bool {
		_, ok := m[email]
		return ok
	})
}
