package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/visionhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCaller runs procedures as SQL functions on the hub database.
type PostgresCaller struct {
	pool   *pgxpool.Pool
	schema string
	prom   *observability.Prom
}

func NewPostgresCaller(pool *pgxpool.Pool, schema string, prom *observability.Prom) *PostgresCaller {
	if schema == "" {
		schema = "public"
	}
	return &PostgresCaller{pool: pool, schema: schema, prom: prom}
}

func (c *PostgresCaller) Call(ctx context.Context, proc Procedure, args []Arg) (json.RawMessage, error) {
	query, values := buildCallSQL(c.schema, proc, args)

	var out []byte
	err := c.prom.ObserveDB("rpc."+proc.Name, func() error {
		return c.pool.QueryRow(ctx, query, values...).Scan(&out)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return json.RawMessage("null"), nil
	}
	if err != nil {
		return nil, err
	}

	if out == nil {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(out), nil
}

var kindCast = map[Kind]string{
	KindUUID:   "uuid",
	KindString: "text",
	KindInt:    "bigint",
	KindBool:   "boolean",
	KindDate:   "date",
}

// buildCallSQL renders a named-notation function call. Identifiers come from
// the registry and are quoted; values are always placeholders.
func buildCallSQL(schema string, proc Procedure, args []Arg) (string, []any) {
	fn := pgx.Identifier{schema, proc.Name}.Sanitize()

	named := make([]string, 0, len(args))
	values := make([]any, 0, len(args))
	for i, a := range args {
		named = append(named, fmt.Sprintf("%s => $%d::%s", pgx.Identifier{a.Name}.Sanitize(), i+1, kindCast[a.Kind]))
		values = append(values, a.Value)
	}
	call := fn + "(" + strings.Join(named, ", ") + ")"

	if proc.Shape == ShapeRows {
		return "SELECT COALESCE(jsonb_agg(to_jsonb(r)), '[]'::jsonb) FROM " + call + " AS r", values
	}
	return "SELECT to_jsonb(r) FROM " + call + " AS r LIMIT 1", values
}
