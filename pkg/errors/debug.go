package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump flattens an error chain into loggable fields.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Chain      []string
	DB         *DBError
}

// DBError holds the Postgres diagnostics of the first driver error in a chain.
type DBError struct {
	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.DB = dbError(err)
	return d
}

// Fields returns the dump as log fields. Database fields are only present
// when the chain carries a driver error.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if d.DB == nil {
		return fields
	}
	fields["pg_code"] = d.DB.SQLState
	for key, val := range map[string]string{
		"pg_constraint": d.DB.Constraint,
		"pg_table":      d.DB.Table,
		"pg_column":     d.DB.Column,
		"pg_detail":     d.DB.Detail,
		"pg_message":    d.DB.Message,
	} {
		if val != "" {
			fields[key] = val
		}
	}
	return fields
}

func dbError(err error) *DBError {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBError{
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBError{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
