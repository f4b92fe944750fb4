package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// NewSelectBuilder creates a Postgres-flavoured select builder
func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

// NewInsertBuilder creates a Postgres-flavoured insert builder
func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

// NewDeleteBuilder creates a Postgres-flavoured delete builder
func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.PostgreSQL.NewDeleteBuilder()
}

// Excluded references the row proposed for insertion inside ON CONFLICT DO UPDATE.
func Excluded(column string) string {
	return fmt.Sprintf("EXCLUDED.%s", column)
}

// OnConflictUpdate appends an upsert clause to a built INSERT. Each column in
// update is overwritten with the proposed value.
func OnConflictUpdate(query string, conflict []string, update ...string) string {
	sets := make([]string, 0, len(update))
	for _, col := range update {
		sets = append(sets, fmt.Sprintf("%s = %s", col, Excluded(col)))
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", query, strings.Join(conflict, ", "), strings.Join(sets, ", "))
}

// OnConflictDoNothing appends a skip clause to a built INSERT.
func OnConflictDoNothing(query string, conflict []string) string {
	return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", query, strings.Join(conflict, ", "))
}

// Binder is implemented by every go-sqlbuilder builder.
type Binder interface {
	Var(arg any) string
}

// JSONContains builds a `column @> value::jsonb` condition for a select or delete builder.
func JSONContains(b Binder, column string, jsonValue string) string {
	return fmt.Sprintf("%s @> %s::jsonb", column, b.Var(jsonValue))
}
