package postgres

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/markdave123-py/studyvault/internal/core"
)

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// tableName maps a collection name to its quoted points table.
func tableName(collection string) string {
	name := unsafeIdent.ReplaceAllString(strings.ToLower(collection), "_")
	return pgx.Identifier{"vc_" + name}.Sanitize()
}

// whereClause renders filter as a parameterized SQL predicate over the
// payload column. Field names are bound as parameters too. Placeholders
// start at $firstArg.
func whereClause(filter core.Filter, firstArg int) (string, []any, error) {
	if filter.IsEmpty() {
		return "TRUE", nil, nil
	}
	n := firstArg
	next := func() string {
		p := fmt.Sprintf("$%d", n)
		n++
		return p
	}

	parts := make([]string, 0, len(filter.Must))
	args := make([]any, 0, 2*len(filter.Must))
	for _, c := range filter.Must {
		switch c.Op {
		case core.OpEq:
			parts = append(parts, fmt.Sprintf("payload->>%s = %s", next(), next()))
			args = append(args, c.Field, core.ScalarString(c.Value))
		case core.OpNe:
			parts = append(parts, fmt.Sprintf("payload->>%s IS DISTINCT FROM %s", next(), next()))
			args = append(args, c.Field, core.ScalarString(c.Value))
		case core.OpIn:
			values, err := core.ScalarSlice(c.Value)
			if err != nil {
				return "", nil, fmt.Errorf("field %q: %w", c.Field, err)
			}
			texts := make([]string, len(values))
			for i, v := range values {
				texts[i] = core.ScalarString(v)
			}
			parts = append(parts, fmt.Sprintf("payload->>%s = ANY(%s)", next(), next()))
			args = append(args, c.Field, texts)
		default:
			return "", nil, fmt.Errorf("unsupported operator %q for field %q", c.Op, c.Field)
		}
	}
	return strings.Join(parts, " AND "), args, nil
}

// distanceSQL returns the pgvector operator and index opclass of a metric.
func distanceSQL(d core.Distance) (operator, opclass string) {
	switch d {
	case core.DistanceDot:
		return "<#>", "vector_ip_ops"
	case core.DistanceEuclid:
		return "<->", "vector_l2_ops"
	default:
		return "<=>", "vector_cosine_ops"
	}
}

// scoreFromDistance turns a pgvector distance into a higher-is-better score.
func scoreFromDistance(d core.Distance, distance float64) float64 {
	switch d {
	case core.DistanceDot:
		// <#> yields the negative inner product.
		return -distance
	case core.DistanceEuclid:
		return 1.0 / (1.0 + distance)
	default:
		return 1 - distance
	}
}

func indexName(collection, suffix string) string {
	name := unsafeIdent.ReplaceAllString(strings.ToLower(collection), "_")
	return pgx.Identifier{"vc_" + name + "_" + suffix + "_idx"}.Sanitize()
}
