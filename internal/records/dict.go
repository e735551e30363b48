package records

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
)

// RegionWordsFile holds the union of every entity name.
const RegionWordsFile = "region_words.txt"

// DictFileName is the vocabulary file of one entity type, e.g. "disease.txt".
func DictFileName(t apptype.EntityType) string {
	return strings.ToLower(string(t)) + ".txt"
}

// WriteDictionaries writes one sorted name per line for every entity type,
// plus the union of all names, into dir. It returns the written paths.
func WriteDictionaries(dir string, n Normalized) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dictionary directory: %w", err)
	}
	union := make(map[string]struct{})
	var paths []string
	for _, t := range apptype.AllEntityTypes() {
		names := n.Nodes[t]
		for _, name := range names {
			union[name] = struct{}{}
		}
		p := filepath.Join(dir, DictFileName(t))
		if err := writeLines(p, names); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	all := make([]string, 0, len(union))
	for name := range union {
		all = append(all, name)
	}
	sort.Strings(all)
	p := filepath.Join(dir, RegionWordsFile)
	if err := writeLines(p, all); err != nil {
		return paths, err
	}
	return append(paths, p), nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
