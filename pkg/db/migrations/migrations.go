// Package migrations contains all database migrations for skillgraph.
// Migrations use Rails-style timestamp versioning (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/jingkaihe/skillgraph/pkg/db"
)

// All returns all registered migrations in the correct order.
// New migrations should be added to this list.
func All() []db.Migration {
	return []db.Migration{
		Migration20250312140000CreateRuns(),
		Migration20250520091500AddRunIndexes(),
	}
}
