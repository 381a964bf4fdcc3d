package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/relmap"
)

type stateErr string

func (e stateErr) Error() string    { return "pgx error" }
func (e stateErr) SQLState() string { return string(e) }

func TestClassifyConstraint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want relmap.ConstraintKind
	}{
		{"nil", nil, relmap.ConstraintNone},
		{"pq/unique", &pq.Error{Code: "23505"}, relmap.ConstraintUnique},
		{"pq/fk", fmt.Errorf("wrap: %w", &pq.Error{Code: "23503"}), relmap.ConstraintForeignKey},
		{"pq/check", &pq.Error{Code: "23514"}, relmap.ConstraintCheck},
		{"pq/other", &pq.Error{Code: "42P01", Message: "relation does not exist"}, relmap.ConstraintNone},
		{"pgx/unique", stateErr("23505"), relmap.ConstraintUnique},
		{"mysql/unique", &mysql.MySQLError{Number: 1062}, relmap.ConstraintUnique},
		{"mysql/fk-parent", &mysql.MySQLError{Number: 1451}, relmap.ConstraintForeignKey},
		{"mysql/fk-child", &mysql.MySQLError{Number: 1452}, relmap.ConstraintForeignKey},
		{"mysql/check", &mysql.MySQLError{Number: 3819}, relmap.ConstraintCheck},
		{"sqlite/unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), relmap.ConstraintUnique},
		{"sqlite/fk", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), relmap.ConstraintForeignKey},
		{"sqlite/check", errors.New("constraint failed: CHECK constraint failed: age > 0 (275)"), relmap.ConstraintCheck},
		{"other", errors.New("syntax error"), relmap.ConstraintNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyConstraint(tt.err))
		})
	}
	assert.True(t, IsUniqueConstraintError(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsForeignKeyConstraintError(&pq.Error{Code: "23503"}))
	assert.True(t, IsCheckConstraintError(errors.New("CHECK constraint failed")))
	assert.False(t, IsUniqueConstraintError(nil))
}
