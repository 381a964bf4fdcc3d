package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/relmap"
	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/schema/field"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates if this is a breaking change.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range slices.Concat(r.Errors, r.Warnings) {
		if e.Breaking {
			return true
		}
	}
	return false
}

// Err returns the validation errors as a single error, or nil.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return relmap.NewAggregateError(errs...)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, list []*ValidationError) {
		if len(list) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, e := range list {
			sb.WriteString("  - " + e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowNullToNotNull bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowNullToNotNull allows changing nullable columns to not null.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// ValidateDiff reviews planned changes for data loss. Drops are errors
// unless allowed by the options; risky alterations are warnings.
//
//	result := schema.ValidateDiff(plan.Changes())
//	if result.HasBreakingChanges() {
//	    log.Fatal("Breaking changes detected:", result)
//	}
func ValidateDiff(changes []Change, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	report := func(allowed bool, err *ValidationError) {
		if allowed {
			result.Warnings = append(result.Warnings, err)
		} else {
			result.Errors = append(result.Errors, err)
		}
	}
	for _, c := range changes {
		table := c.Table.QualifiedName()
		switch c.Kind {
		case DropTable:
			report(cfg.allowDropTable, &ValidationError{Table: table, Message: "table will be dropped", Breaking: true})
		case DropColumn:
			report(cfg.allowDropColumn, &ValidationError{Table: table, Column: c.Column.Name, Message: "column will be dropped", Breaking: true})
		case AddColumn:
			if !c.Column.Nullable && c.Column.Default == nil && c.Column.Generation == GenNone {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   table,
					Column:  c.Column.Name,
					Message: "new NOT NULL column without default value may fail if table has data",
				})
			}
		case ChangeColumn:
			from, to := c.From, c.Column
			if from.Type != to.Type {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   table,
					Column:  to.Name,
					Message: fmt.Sprintf("column type changing from %v to %v", from.Type, to.Type),
				})
			}
			if from.Nullable && !to.Nullable {
				report(cfg.allowNullToNotNull, &ValidationError{
					Table:    table,
					Column:   to.Name,
					Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
					Breaking: true,
				})
			}
			if from.Size > 0 && to.Size > 0 && to.Size < from.Size {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   table,
					Column:  to.Name,
					Message: fmt.Sprintf("column size reducing from %d to %d may truncate data", from.Size, to.Size),
				})
			}
		case AddUnique:
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   table,
				Message: fmt.Sprintf("adding unique constraint %q may fail if duplicate values exist", c.Unique.Name),
			})
		}
	}
	return result
}

// ValidateTable validates a single table definition.
func ValidateTable(t *Table, caps dialect.Capabilities) *ValidationResult {
	result := &ValidationResult{}
	name := t.QualifiedName()
	if len(t.PrimaryKey) == 0 && !t.View {
		result.Errors = append(result.Errors, &ValidationError{Table: name, Message: "table has no primary key"})
	}
	colNames := make(map[string]bool)
	for _, c := range t.Columns {
		if colNames[c.Name] {
			result.Errors = append(result.Errors, &ValidationError{Table: name, Column: c.Name, Message: "duplicate column name"})
		}
		colNames[c.Name] = true
		if !c.Type.Valid() {
			result.Errors = append(result.Errors, &ValidationError{Table: name, Column: c.Name, Message: "invalid column type"})
		}
		if c.Generation == GenIncrement && !c.Type.Integer() {
			result.Errors = append(result.Errors, &ValidationError{Table: name, Column: c.Name, Message: "increment column must be an integer"})
		}
		if c.Generation == GenIncrement && !t.IsPrimaryKey(c.Name) && caps.Name != "" && !caps.IncrementOutsidePK {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   name,
				Column:  c.Name,
				Message: fmt.Sprintf("increment column outside the primary key is not supported by %s", caps.Name),
			})
		}
	}
	missing := func(kind, obj string, cols []string) {
		for _, c := range cols {
			if !colNames[c] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   name,
					Message: fmt.Sprintf("%s %q references non-existent column %q", kind, obj, c),
				})
			}
		}
	}
	missing("primary key", name, t.PrimaryKey)
	for _, idx := range t.Indexes {
		missing("index", idx.Name, idx.Columns())
	}
	for _, u := range t.Uniques {
		missing("unique constraint", u.Name, u.Columns)
	}
	for _, fk := range t.ForeignKeys {
		missing("foreign key", fk.Symbol, fk.Columns)
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.RefColumns) {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   name,
				Message: fmt.Sprintf("foreign key %q has %d columns and %d referenced columns", fk.Symbol, len(fk.Columns), len(fk.RefColumns)),
			})
		}
	}
	return result
}

// ValidateSchema validates all tables of a model, including the foreign key
// references between them. Referenced columns must be the primary key or
// covered by a unique constraint or unique index.
func ValidateSchema(m *Model, caps dialect.Capabilities) *ValidationResult {
	result := &ValidationResult{}
	tableNames := make(map[string]bool)
	for _, t := range m.Tables {
		if tableNames[t.QualifiedName()] {
			result.Errors = append(result.Errors, &ValidationError{Table: t.QualifiedName(), Message: "duplicate table name"})
		}
		tableNames[t.QualifiedName()] = true
		tr := ValidateTable(t, caps)
		result.Errors = append(result.Errors, tr.Errors...)
		result.Warnings = append(result.Warnings, tr.Warnings...)
	}
	for _, t := range m.Tables {
		for _, fk := range t.ForeignKeys {
			ref, ok := m.Table(fk.RefTable)
			if !ok {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.QualifiedName(),
					Message: fmt.Sprintf("foreign key %q references non-existent table %q", fk.Symbol, fk.RefTable),
				})
				continue
			}
			if !ref.uniqueOn(fk.RefColumns) {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.QualifiedName(),
					Message: fmt.Sprintf("foreign key %q references columns %v of %q that are neither primary key nor unique", fk.Symbol, fk.RefColumns, fk.RefTable),
				})
			}
		}
	}
	return result
}

// uniqueOn reports whether the set of columns is the primary key or covered
// by a unique constraint or a full unique index.
func (t *Table) uniqueOn(cols []string) bool {
	same := func(a []string) bool {
		if len(a) != len(cols) {
			return false
		}
		for _, c := range cols {
			if !slices.Contains(a, c) {
				return false
			}
		}
		return true
	}
	if same(t.PrimaryKey) {
		return true
	}
	for _, u := range t.Uniques {
		if same(u.Columns) {
			return true
		}
	}
	for _, idx := range t.Indexes {
		if idx.Unique && idx.Where == "" && len(idx.Columns()) == len(idx.Parts) && same(idx.Columns()) {
			return true
		}
	}
	return false
}

// checkNames reports the first constraint or index name used twice within a
// schema scope, in table and declaration order.
func checkNames(m *Model) error {
	type owner struct{ table string }
	seen := make(map[string]map[string]owner)
	for _, t := range m.sorted() {
		if seen[t.Schema] == nil {
			seen[t.Schema] = make(map[string]owner)
		}
		scope := seen[t.Schema]
		var names []string
		for _, idx := range t.Indexes {
			names = append(names, idx.Name)
		}
		for _, u := range t.Uniques {
			names = append(names, u.Name)
		}
		for _, c := range t.Checks {
			names = append(names, c.Name)
		}
		for _, e := range t.Exclusions {
			names = append(names, e.Name)
		}
		for _, fk := range t.ForeignKeys {
			names = append(names, fk.Symbol)
		}
		for _, n := range names {
			if prev, ok := scope[n]; ok {
				return relmap.NewConstraintNameCollisionError(t.Schema, n, prev.table, t.QualifiedName())
			}
			scope[n] = owner{table: t.QualifiedName()}
		}
	}
	return nil
}

// checkCapabilities reports the first construct of the model the dialect
// cannot express.
func checkCapabilities(m *Model, caps dialect.Capabilities) error {
	for _, t := range m.sorted() {
		name := t.QualifiedName()
		for _, c := range t.Columns {
			if c.Type == field.TypeVector && !caps.VectorType && c.SchemaType[caps.Name] == "" {
				return relmap.NewCapabilityError(caps.Name, name, "vector column", c.Name)
			}
			if c.Generation == GenIncrement && !t.IsPrimaryKey(c.Name) && !caps.IncrementOutsidePK {
				return relmap.NewCapabilityError(caps.Name, name, "increment column outside primary key", c.Name)
			}
		}
		for _, idx := range t.Indexes {
			if idx.Where != "" && !caps.PartialIndexes {
				return relmap.NewCapabilityError(caps.Name, name, "partial index", idx.Name)
			}
			if idx.Method != "" && !caps.IndexMethods {
				return relmap.NewCapabilityError(caps.Name, name, "index method", idx.Name)
			}
		}
		if len(t.Exclusions) > 0 && !caps.ExclusionConstraints {
			return relmap.NewCapabilityError(caps.Name, name, "exclusion constraint", t.Exclusions[0].Name)
		}
		for _, fk := range t.ForeignKeys {
			if fk.Deferrable != NotDeferrable && !caps.DeferrableFK {
				return relmap.NewCapabilityError(caps.Name, name, "deferrable foreign key", fk.Symbol)
			}
		}
	}
	return nil
}
