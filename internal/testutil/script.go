package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CRLF joins lines into a script where every line ends with "\r\n".
func CRLF(lines ...string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\r\n")
	}
	return sb.String()
}

// WriteScript writes content to name inside a fresh temp dir and returns the path.
func WriteScript(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
