package graph

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
)

// Direction selects which end of an edge the traversal starts from
type Direction int

const (
	// Outgoing follows edges from source to target.
	Outgoing Direction = iota
	// Incoming follows edges from target back to source.
	Incoming
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "out"
	case Incoming:
		return "in"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "out"/"outgoing" and "in"/"incoming".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "out", "outgoing":
		return Outgoing, nil
	case "in", "incoming":
		return Incoming, nil
	default:
		return 0, fmt.Errorf("%w: direction %q", ErrInvalidQuery, s)
	}
}

// TraversalQuery describes a single-hop traversal. Adapters translate it into
// their native query language; callers never build query text.
type TraversalQuery struct {
	From        apptype.EntityRef
	Relation    apptype.RelationType
	Direction   Direction
	TargetLabel apptype.EntityType // optional
	Limit       int                // <= 0 means no limit
}

// Validate checks the query is well formed.
func (q TraversalQuery) Validate() error {
	if strings.TrimSpace(q.From.Name) == "" {
		return fmt.Errorf("%w: traversal start name is empty", ErrInvalidQuery)
	}
	if q.Relation == "" {
		return fmt.Errorf("%w: traversal relation is empty", ErrInvalidQuery)
	}
	if q.Direction != Outgoing && q.Direction != Incoming {
		return fmt.Errorf("%w: direction %d", ErrInvalidQuery, int(q.Direction))
	}
	return nil
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be safely interpolated as a label,
// relation type or property key.
func ValidIdentifier(s string) bool { return identifierRe.MatchString(s) }
