package annotation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Remapper replaces obsolete phenotype IDs with their current ones.
type Remapper interface {
	Remap(id string) string
}

// RemapFunc adapts a plain function to Remapper.
type RemapFunc func(id string) string

// Remap calls f(id).
func (f RemapFunc) Remap(id string) string { return f(id) }

// Identity leaves every ID unchanged.
var Identity Remapper = RemapFunc(func(id string) string { return id })

// RemapTable is a static obsolete → current ID table. IDs not in the table pass through.
type RemapTable map[string]string

// Remap returns the current ID for id.
func (t RemapTable) Remap(id string) string {
	if cur, ok := t[id]; ok && cur != "" {
		return cur
	}
	return id
}

// ReadRemapTable parses "obsolete<TAB>current" lines. Blank lines, '#' comments
// and lines with fewer than two columns are ignored.
func ReadRemapTable(r io.Reader) (RemapTable, error) {
	t := make(RemapTable)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		from, to := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if from == "" || to == "" {
			continue
		}
		t[from] = to
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read remap table: %w", err)
	}
	return t, nil
}

// LoadRemapFile reads a remap table from path. An empty path yields Identity.
func LoadRemapFile(path string) (Remapper, error) {
	if path == "" {
		return Identity, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open remap table %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := ReadRemapTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
