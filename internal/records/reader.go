package records

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
)

// MaxLineBytes bounds a single JSONL line.
const MaxLineBytes = 1 << 20

// ReadStats counts lines seen by ReadJSONL.
type ReadStats struct {
	Lines     int `json:"lines"`
	Decoded   int `json:"decoded"`
	Malformed int `json:"malformed"`
}

// ReadJSONL decodes one Record per line and hands it to fn. Blank lines are
// ignored and malformed lines are logged and counted. An error from fn, a
// read error or context cancellation stops the scan.
func ReadJSONL(ctx context.Context, r io.Reader, log *logger.Logger, fn func(Record) error) (ReadStats, error) {
	if log == nil {
		log = logger.Nop()
	}
	var stats ReadStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++
		line := bytes.TrimSpace(sc.Bytes())
		if stats.Lines == 1 {
			line = bytes.TrimPrefix(line, []byte("\xef\xbb\xbf"))
		}
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.Malformed++
			log.Warn("skipping malformed record", "line", stats.Lines, "error", err)
			continue
		}
		stats.Decoded++
		if err := fn(rec); err != nil {
			return stats, err
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("failed to read records at line %d: %w", stats.Lines+1, err)
	}
	return stats, nil
}

// Load normalizes every record read from r.
func Load(ctx context.Context, r io.Reader, log *logger.Logger) (Normalized, ReadStats, error) {
	n := NewNormalizer()
	stats, err := ReadJSONL(ctx, r, log, func(rec Record) error {
		n.Add(rec)
		return nil
	})
	if err != nil {
		return Normalized{}, stats, err
	}
	return n.Result(), stats, nil
}

// LoadFile normalizes the JSONL file at path.
func LoadFile(ctx context.Context, path string, log *logger.Logger) (Normalized, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Normalized{}, ReadStats{}, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()
	return Load(ctx, f, log)
}
