package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VersionFile is where a Chromium checkout records its own version.
const VersionFile = "chrome/VERSION"

var versionKeys = []string{"MAJOR", "MINOR", "BUILD", "PATCH"}

// ReadVersion returns the dotted version of the checkout at root, read from
// its MAJOR/MINOR/BUILD/PATCH lines.
func ReadVersion(root string) (string, error) {
	path := filepath.Join(root, VersionFile)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer f.Close()

	fields := make(map[string]string, len(versionKeys))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if ok {
			fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	parts := make([]string, 0, len(versionKeys))
	for _, key := range versionKeys {
		v, ok := fields[key]
		if !ok || v == "" {
			return "", fmt.Errorf("%s has no %s", path, key)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "."), nil
}
