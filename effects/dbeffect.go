// Package effects implements the concrete effect handlers spec §4.7
// declares: DbRead, DbWrite, HttpOut, Log, Async. Each is an
// effect.Handler, reached through effect.Registry.Invoke or, when
// wrapped by an Async call, through Async — never called directly by
// guest code.
package effects

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// maxDbErrorMessage truncates a Postgres driver error before it is
// embedded in a response envelope (spec §6: error messages are bounded
// so a verbose driver error can never blow the response size budget).
const maxDbErrorMessage = 1024

// DbRead executes a parameterised SELECT and returns its rows as a
// JSON array of objects (column name -> value), the shape a guest's
// db.read(...) call observes.
type DbRead struct {
	Pool *pgxpool.Pool
}

// dbReadArgs is the expected shape of a DbRead call's args Value: a
// record with "query" (string) and "params" (list) fields.
func dbReadArgs(args value.Value) (query string, params []any, err error) {
	if args.Kind() != value.KindRecord {
		return "", nil, mtperr.New(mtperr.InvalidEffect, "DbRead args must be a record")
	}
	for _, f := range args.RecordFields() {
		switch f.Name {
		case "query":
			if f.Value.Kind() != value.KindString {
				return "", nil, mtperr.New(mtperr.InvalidEffect, "DbRead.query must be a string")
			}
			query = f.Value.AsString()
		case "params":
			if f.Value.Kind() != value.KindList {
				return "", nil, mtperr.New(mtperr.InvalidEffect, "DbRead.params must be a list")
			}
			for _, p := range f.Value.ListItems() {
				params = append(params, valueToDriverArg(p))
			}
		}
	}
	if query == "" {
		return "", nil, mtperr.New(mtperr.InvalidEffect, "DbRead requires a non-empty query")
	}
	return query, params, nil
}

func valueToDriverArg(v value.Value) any {
	switch v.Kind() {
	case value.KindInt:
		return v.AsInt()
	case value.KindString:
		return v.AsString()
	case value.KindBool:
		return v.AsBool()
	case value.KindDecimal:
		return v.AsDecimal().String()
	default:
		return nil
	}
}

func (h DbRead) Invoke(ctx context.Context, args value.Value) (value.JSON, error) {
	query, params, err := dbReadArgs(args)
	if err != nil {
		return value.JSON{}, err
	}

	rows, err := h.Pool.Query(ctx, query, params...)
	if err != nil {
		return value.JSON{}, mtperr.Wrap(mtperr.DbReadFailed, err, "%s", truncate(err.Error(), maxDbErrorMessage))
	}
	defer rows.Close()

	result, err := rowsToJSON(rows)
	if err != nil {
		return value.JSON{}, mtperr.Wrap(mtperr.DbReadFailed, err, "%s", truncate(err.Error(), maxDbErrorMessage))
	}
	return result, nil
}

func rowsToJSON(rows pgx.Rows) (value.JSON, error) {
	fields := rows.FieldDescriptions()
	var out []value.JSON
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return value.JSON{}, err
		}
		members := make([]value.JSONMember, len(fields))
		for i, fd := range fields {
			j, err := driverValueToJSON(vals[i])
			if err != nil {
				return value.JSON{}, err
			}
			members[i] = value.JSONMember{Key: string(fd.Name), Value: j}
		}
		out = append(out, value.JSONObjectOf(members))
	}
	if err := rows.Err(); err != nil {
		return value.JSON{}, err
	}
	return value.JSONArrayOf(out), nil
}

func driverValueToJSON(v any) (value.JSON, error) {
	switch t := v.(type) {
	case nil:
		return value.JSONObjectOf(nil), nil // guest sees an empty object for SQL NULL, not the internal-only JSON null
	case int64:
		return value.JSONFromInt(t)
	case int32:
		return value.JSONFromInt(int64(t))
	case string:
		return value.JSONFromString(t), nil
	case bool:
		return value.JSONFromBool(t), nil
	default:
		return value.JSONFromString(truncate(stringify(t), maxDbErrorMessage)), nil
	}
}

func stringify(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// DbWrite executes an INSERT/UPDATE/DELETE inside an explicit
// transaction: BEGIN, exec, COMMIT on success, ROLLBACK plus
// mtperr.DbWriteFailed on any failure (spec §4.7). A cache hit at the
// registry layer never re-executes this against Postgres.
type DbWrite struct {
	Pool *pgxpool.Pool
}

// dbWriteArgs is the expected shape of a DbWrite call's args Value: a
// record with "statement" (string) and "params" (list) fields (spec
// §4.7: DbWrite(statement, params), distinct from DbRead's "query").
func dbWriteArgs(args value.Value) (statement string, params []any, err error) {
	if args.Kind() != value.KindRecord {
		return "", nil, mtperr.New(mtperr.InvalidEffect, "DbWrite args must be a record")
	}
	for _, f := range args.RecordFields() {
		switch f.Name {
		case "statement":
			if f.Value.Kind() != value.KindString {
				return "", nil, mtperr.New(mtperr.InvalidEffect, "DbWrite.statement must be a string")
			}
			statement = f.Value.AsString()
		case "params":
			if f.Value.Kind() != value.KindList {
				return "", nil, mtperr.New(mtperr.InvalidEffect, "DbWrite.params must be a list")
			}
			for _, p := range f.Value.ListItems() {
				params = append(params, valueToDriverArg(p))
			}
		}
	}
	if statement == "" {
		return "", nil, mtperr.New(mtperr.InvalidEffect, "DbWrite requires a non-empty statement")
	}
	return statement, params, nil
}

func (h DbWrite) Invoke(ctx context.Context, args value.Value) (value.JSON, error) {
	query, params, err := dbWriteArgs(args)
	if err != nil {
		return value.JSON{}, err
	}

	tx, err := h.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return value.JSON{}, mtperr.Wrap(mtperr.DbWriteFailed, err, "%s", truncate(err.Error(), maxDbErrorMessage))
	}

	tag, err := tx.Exec(ctx, query, params...)
	if err != nil {
		_ = tx.Rollback(ctx)
		return value.JSON{}, mtperr.Wrap(mtperr.DbWriteFailed, err, "%s", truncate(err.Error(), maxDbErrorMessage))
	}
	if err := tx.Commit(ctx); err != nil {
		return value.JSON{}, mtperr.Wrap(mtperr.DbWriteFailed, err, "%s", truncate(err.Error(), maxDbErrorMessage))
	}

	return value.JSONFromInt(tag.RowsAffected())
}
