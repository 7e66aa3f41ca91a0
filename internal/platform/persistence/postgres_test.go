package persistence

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The pool itself needs a live server; repository behavior over Querier is
// covered by the pgxmock tests in internal/data/postgres.
func TestPostgresDB_PoolAccessor(t *testing.T) {
	db := &PostgresDB{
		logger: slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}

	assert.Nil(t, db.Pool())
}
