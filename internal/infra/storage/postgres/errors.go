package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/infra/storage"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

// RegisterErrors adds the database error mappings to c.
func RegisterErrors(c *resilience.Classifier) {
	c.RegisterSentinel(storage.ErrDocumentNotFound, func(err error) *failure.Error {
		return failure.New(failure.KindDatabase, failure.CodeDatabaseRead, "Document not found", err)
	})
	c.RegisterSentinel(driver.ErrBadConn, connectionError)
	c.RegisterSentinel(sql.ErrConnDone, connectionError)
	resilience.RegisterType[*pgconn.PgError](c, func(err error) *failure.Error {
		var pgErr *pgconn.PgError
		errors.As(err, &pgErr)
		return fromSQLState(pgErr.Code, err)
	})
	resilience.RegisterType[*pq.Error](c, func(err error) *failure.Error {
		var pqErr *pq.Error
		errors.As(err, &pqErr)
		return fromSQLState(string(pqErr.Code), err)
	})
	resilience.RegisterType[*pgconn.ConnectError](c, connectionError)
}

func connectionError(err error) *failure.Error {
	return failure.New(failure.KindDatabase, failure.CodeDatabaseConnection, "Database connection failed", err)
}

// fromSQLState maps SQLSTATE classes onto database error codes.
func fromSQLState(state string, err error) *failure.Error {
	switch {
	case strings.HasPrefix(state, "08"), strings.HasPrefix(state, "57P"):
		return connectionError(err)
	case strings.HasPrefix(state, "23"):
		return failure.New(failure.KindDatabase, failure.CodeDatabaseWrite, "Database constraint violated", err)
	case strings.HasPrefix(state, "22"):
		return failure.New(failure.KindValidation, failure.CodeValidation, "Invalid data for database", err)
	default:
		return failure.Database("Database query failed", err)
	}
}

// Retryable reports whether a database error is worth another attempt.
func Retryable(err error) bool {
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientState(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return isTransientState(string(pqErr.Code))
	}
	return true
}

func isTransientState(state string) bool {
	return strings.HasPrefix(state, "08") || strings.HasPrefix(state, "40") ||
		strings.HasPrefix(state, "53") || strings.HasPrefix(state, "57P")
}
