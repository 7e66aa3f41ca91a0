package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Full migration runs need a live database; these cover the guard clauses.
func TestRunMigrations_RejectsMissingInputs(t *testing.T) {
	t.Run("missing database URL", func(t *testing.T) {
		err := RunMigrations("", "migrations/ledger")
		assert.ErrorContains(t, err, "database URL")
	})

	t.Run("missing migrations path", func(t *testing.T) {
		err := RunMigrations("postgres://localhost/orderflow", "")
		assert.ErrorContains(t, err, "migrations path")
	})
}
