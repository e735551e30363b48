package neo4jstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
)

// Labels and relation types cannot be parameters in Cypher, so they are
// validated and backquoted here. Everything else is passed as a parameter.

func quote(ident string) (string, error) {
	if !graph.ValidIdentifier(ident) {
		return "", fmt.Errorf("identifier %q: %w", ident, graph.ErrInvalidQuery)
	}
	return "`" + ident + "`", nil
}

func constraintCypher(label apptype.EntityType) (string, error) {
	l, err := quote(string(label))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE CONSTRAINT medkg_%s_name IF NOT EXISTS FOR (n:%s) REQUIRE n.name IS UNIQUE",
		strings.ToLower(string(label)), l), nil
}

// mergeNodeCypher creates the node unless one with the same name exists.
// created is true only when this call set the id.
func mergeNodeCypher(label apptype.EntityType) (string, error) {
	l, err := quote(string(label))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`MERGE (n:%s {name: $name})
ON CREATE SET n += $props, n.id = $id
RETURN n.id AS id, n.id = $id AS created`, l), nil
}

// findNodesCypher matches on name and property equality. Keys are sorted so
// the same filter always yields the same text.
func findNodesCypher(label apptype.EntityType, props map[string]any, limit int) (string, map[string]any, error) {
	l, err := quote(string(label))
	if err != nil {
		return "", nil, err
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := map[string]any{}
	conds := make([]string, 0, len(keys))
	for i, k := range keys {
		qk, err := quote(k)
		if err != nil {
			return "", nil, err
		}
		p := fmt.Sprintf("p%d", i)
		conds = append(conds, fmt.Sprintf("n.%s = $%s", qk, p))
		params[p] = props[k]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (n:%s)", l)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" RETURN n ORDER BY n.name")
	if limit > 0 {
		b.WriteString(" LIMIT $limit")
		params["limit"] = int64(limit)
	}
	return b.String(), params, nil
}

func endpointsCypher(from, to apptype.EntityType) (string, error) {
	fl, err := quote(string(from))
	if err != nil {
		return "", err
	}
	tl, err := quote(string(to))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`OPTIONAL MATCH (a:%s {name: $from})
OPTIONAL MATCH (b:%s {name: $to})
RETURN a IS NOT NULL AS has_from, b IS NOT NULL AS has_to`, fl, tl), nil
}

// mergeRelCypher keeps at most one edge per (source, target, type). seq
// records creation order for traversal.
func mergeRelCypher(from apptype.EntityType, rel apptype.RelationType, to apptype.EntityType) (string, error) {
	fl, err := quote(string(from))
	if err != nil {
		return "", err
	}
	tl, err := quote(string(to))
	if err != nil {
		return "", err
	}
	rt, err := quote(string(rel))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`MATCH (a:%s {name: $from})
MATCH (b:%s {name: $to})
MERGE (a)-[r:%s]->(b)
ON CREATE SET r += $props, r.id = $id, r.seq = $seq
RETURN r.id AS id, r.id = $id AS created`, fl, tl, rt), nil
}

func traverseCypher(q graph.TraversalQuery) (string, map[string]any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	fl, err := quote(string(q.From.Label))
	if err != nil {
		return "", nil, err
	}
	rt, err := quote(string(q.Relation))
	if err != nil {
		return "", nil, err
	}
	target := "b"
	if q.TargetLabel != "" {
		tl, err := quote(string(q.TargetLabel))
		if err != nil {
			return "", nil, err
		}
		target = "b:" + tl
	}
	pattern := "-[r:%s]->"
	if q.Direction == graph.Incoming {
		pattern = "<-[r:%s]-"
	}
	params := map[string]any{"name": q.From.Name}
	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (a:%s {name: $name})"+pattern+"(%s) RETURN b ORDER BY r.seq", fl, rt, target)
	if q.Limit > 0 {
		b.WriteString(" LIMIT $limit")
		params["limit"] = int64(q.Limit)
	}
	return b.String(), params, nil
}

// labelFilter matches nodes carrying any of the known entity labels.
func labelFilter(v string) string {
	types := apptype.AllEntityTypes()
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%s:`%s`", v, t)
	}
	return strings.Join(parts, " OR ")
}

func clearCypher() string {
	return "MATCH (n) WHERE " + labelFilter("n") + " DETACH DELETE n"
}

func nodeStatsCypher() string {
	return "MATCH (n) WHERE " + labelFilter("n") + " UNWIND labels(n) AS label RETURN label, count(*) AS c"
}

func relStatsCypher() string {
	return "MATCH (a)-[r]->(b) WHERE " + labelFilter("a") + " RETURN type(r) AS t, count(*) AS c"
}
