// Package dotenv seeds the process environment from a local .env file
// so a dev box can run the gateway without exporting every FRONTDESK_*
// variable by hand. Values already present in the environment win over
// the file, which keeps container and CI overrides authoritative.
package dotenv

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Load reads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error. Variables that are already set are
// left untouched.
func Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file %q: %w", path, err)
	}

	for _, raw := range strings.Split(string(data), "\n") {
		key, val, ok := parseLine(raw)
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf("set %s from %q: %w", key, path, err)
		}
	}
	return nil
}

// parseLine extracts one assignment. Blank lines, comments, and lines
// without a key are skipped. An "export " prefix and single or double
// quotes around the value are tolerated so shell-sourced files work
// unchanged.
func parseLine(raw string) (key, val string, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	return key, unquote(strings.TrimSpace(val)), true
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	first, last := val[0], val[len(val)-1]
	if first == last && (first == '"' || first == '\'') {
		return val[1 : len(val)-1]
	}
	return val
}
