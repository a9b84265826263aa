// Package deletion decides between soft and hard deletes and makes hard
// deletes propagate: tombstone, change log entry, and row removal commit in
// one transaction.
package deletion

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

// dependent declares one table that references another. Cascadable
// dependents are removed together with their parent; the rest block a hard
// delete unless forced.
type dependent struct {
	table      string
	column     string
	cascadable bool
}

// dependentsByTable is the closed reference graph between entity tables.
// Foreign keys are not declared in the schema, so this map is the only
// integrity enforcement for hard deletes.
var dependentsByTable = map[string][]dependent{
	"strategic_goals": {
		{table: "projects", column: "strategic_goal_id"},
	},
	"projects": {
		{table: "activities", column: "project_id", cascadable: true},
		{table: "workshops", column: "project_id"},
		{table: "livelihoods", column: "project_id"},
		{table: "project_funding", column: "project_id"},
	},
	"donors": {
		{table: "project_funding", column: "donor_id"},
	},
	"participants": {
		{table: "livelihoods", column: "participant_id"},
	},
}

// Dependency is one dependent table that currently holds rows referencing
// the entity under deletion.
type Dependency struct {
	Table      string
	Column     string
	Count      int64
	Cascadable bool
}

// DependencyChecker counts live references to an entity before deletion.
type DependencyChecker struct {
	db *sql.DB
}

// NewDependencyChecker creates a checker on db.
func NewDependencyChecker(db *sql.DB) *DependencyChecker {
	return &DependencyChecker{db: db}
}

// Check returns the dependents of (table, id) that hold at least one
// non-deleted referencing row. Tables with no declared dependents return an
// empty result.
func (c *DependencyChecker) Check(ctx context.Context, table string, id models.UUID) ([]Dependency, error) {
	var out []Dependency
	for _, d := range dependentsByTable[table] {
		query := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE %s = ? AND deleted_at IS NULL", d.table, d.column)
		var n int64
		if err := c.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to count dependents", err)
		}
		if n > 0 {
			out = append(out, Dependency{Table: d.table, Column: d.column, Count: n, Cascadable: d.cascadable})
		}
	}
	return out, nil
}

// Blocking returns the dependent table names that prevent a hard delete.
func Blocking(deps []Dependency) []string {
	var tables []string
	for _, d := range deps {
		if !d.Cascadable {
			tables = append(tables, d.Table)
		}
	}
	return tables
}
