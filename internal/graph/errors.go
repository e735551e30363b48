package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
)

var (
	// ErrDuplicate reports a node or relationship that already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrMissingEndpoint reports a relationship whose endpoint cannot be matched.
	ErrMissingEndpoint = errors.New("relationship endpoint not found")
	// ErrNotFound reports a missing node.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery reports a malformed query or identifier.
	ErrInvalidQuery = errors.New("invalid query")
)

// EndpointError lists the endpoints that could not be matched.
type EndpointError struct {
	Missing []apptype.EntityRef
}

func (e *EndpointError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = m.String()
	}
	return fmt.Sprintf("%s: %s", ErrMissingEndpoint, strings.Join(names, ", "))
}

func (e *EndpointError) Is(target error) bool { return target == ErrMissingEndpoint }
