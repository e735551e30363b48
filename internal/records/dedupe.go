package records

import "github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"

// EdgeKeySeparator joins source and target into an edge key. It is not
// expected to occur in entity names.
const EdgeKeySeparator = "@@@"

// EdgeKey is the dedup key of an edge within its relation type.
func EdgeKey(e apptype.Edge) string {
	return e.Source + EdgeKeySeparator + e.Target
}

// DedupeEdges collapses edges of one relation type to one per
// (source, target), keeping first-seen order. Edges with a blank endpoint
// are dropped.
func DedupeEdges(edges []apptype.Edge) []apptype.Edge {
	seen := make(map[string]struct{}, len(edges))
	out := make([]apptype.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Source == "" || e.Target == "" {
			continue
		}
		k := string(e.Type) + EdgeKeySeparator + EdgeKey(e)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
