package postgres

import (
	"database/sql/driver"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/infra/storage"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

func TestRegisterErrors(t *testing.T) {
	c := resilience.DefaultClassifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	RegisterErrors(c)

	tests := []struct {
		name      string
		err       error
		kind      failure.Kind
		code      failure.Code
		retryable bool
	}{
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, failure.KindDatabase, failure.CodeDatabaseWrite, false},
		{"pgx connection failure", &pgconn.PgError{Code: "08006"}, failure.KindDatabase, failure.CodeDatabaseConnection, true},
		{"pq serialization failure", &pq.Error{Code: "40001"}, failure.KindDatabase, failure.CodeDatabaseQuery, true},
		{"pq bad input", &pq.Error{Code: "22P02"}, failure.KindValidation, failure.CodeValidation, false},
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), failure.KindDatabase, failure.CodeDatabaseConnection, true},
		{"not found", storage.ErrDocumentNotFound, failure.KindDatabase, failure.CodeDatabaseRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := c.Classify(tt.err)
			if fe.Kind != tt.kind || fe.Code != tt.code {
				t.Errorf("classified as %s/%s, want %s/%s", fe.Kind, fe.Code, tt.kind, tt.code)
			}
			if Retryable(tt.err) != tt.retryable {
				t.Errorf("Retryable = %v, want %v", Retryable(tt.err), tt.retryable)
			}
		})
	}
}
