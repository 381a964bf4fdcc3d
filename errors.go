package relmap

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	// ErrCapability is returned when the target schema uses a construct
	// the dialect cannot express.
	ErrCapability = errors.New("relmap: unsupported by dialect")

	// ErrCycleUnbreakable is returned when a dependency cycle has no
	// nullable or deferrable edge to break.
	ErrCycleUnbreakable = errors.New("relmap: unbreakable dependency cycle")

	// ErrConstraintNameCollision is returned when two structurally different
	// constraints resolve to the same name.
	ErrConstraintNameCollision = errors.New("relmap: constraint name collision")

	// ErrStatementExecution is returned when a planned statement fails.
	ErrStatementExecution = errors.New("relmap: statement execution failed")

	// ErrOrphanResolution is returned when an orphan-removal candidate
	// cannot be uniquely resolved.
	ErrOrphanResolution = errors.New("relmap: orphan resolution failed")

	// ErrInvalidGraph is returned when an entity graph cannot be planned,
	// e.g. a new entity is reachable only through a non-cascaded edge.
	ErrInvalidGraph = errors.New("relmap: invalid entity graph")
)

// CapabilityError represents a schema construct the dialect cannot express.
type CapabilityError struct {
	Dialect   string
	Table     string
	Construct string // e.g. "exclusion constraint", "deferrable foreign key"
	Name      string // Optional: the offending column or constraint
}

// Error returns the error string.
func (e *CapabilityError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("relmap: %s %q on table %q is not supported by %s", e.Construct, e.Name, e.Table, e.Dialect)
	}
	return fmt.Sprintf("relmap: %s on table %q is not supported by %s", e.Construct, e.Table, e.Dialect)
}

// Is reports whether the target error matches ErrCapability.
func (e *CapabilityError) Is(err error) bool {
	return err == ErrCapability
}

// NewCapabilityError returns a new CapabilityError.
func NewCapabilityError(dialect, table, construct, name string) *CapabilityError {
	return &CapabilityError{Dialect: dialect, Table: table, Construct: construct, Name: name}
}

// IsCapabilityError returns true if the error is a CapabilityError.
func IsCapabilityError(err error) bool {
	if err == nil {
		return false
	}
	var e *CapabilityError
	return errors.As(err, &e) || errors.Is(err, ErrCapability)
}

// CycleUnbreakableError represents a dependency cycle that cannot be split
// by a two-phase write or a deferred constraint.
type CycleUnbreakableError struct {
	// Members holds the table (schema planning) or entity (persistence
	// planning) names participating in the cycle, in cycle order.
	Members []string
}

// Error returns the error string.
func (e *CycleUnbreakableError) Error() string {
	return fmt.Sprintf("relmap: dependency cycle without nullable or deferrable edge: %s", strings.Join(e.Members, " -> "))
}

// Is reports whether the target error matches ErrCycleUnbreakable.
func (e *CycleUnbreakableError) Is(err error) bool {
	return err == ErrCycleUnbreakable
}

// NewCycleUnbreakableError returns a new CycleUnbreakableError.
func NewCycleUnbreakableError(members ...string) *CycleUnbreakableError {
	return &CycleUnbreakableError{Members: members}
}

// IsCycleUnbreakable returns true if the error is a CycleUnbreakableError.
func IsCycleUnbreakable(err error) bool {
	if err == nil {
		return false
	}
	var e *CycleUnbreakableError
	return errors.As(err, &e) || errors.Is(err, ErrCycleUnbreakable)
}

// ConstraintNameCollisionError represents two structurally different
// constraints sharing one name within a schema scope.
type ConstraintNameCollisionError struct {
	Scope  string
	Name   string
	Tables []string // Owning tables of the colliding constraints
}

// Error returns the error string.
func (e *ConstraintNameCollisionError) Error() string {
	scope := e.Scope
	if scope == "" {
		scope = "default"
	}
	return fmt.Sprintf("relmap: constraint name %q is used by different constraints in scope %q (tables: %s)", e.Name, scope, strings.Join(e.Tables, ", "))
}

// Is reports whether the target error matches ErrConstraintNameCollision.
func (e *ConstraintNameCollisionError) Is(err error) bool {
	return err == ErrConstraintNameCollision
}

// NewConstraintNameCollisionError returns a new ConstraintNameCollisionError.
func NewConstraintNameCollisionError(scope, name string, tables ...string) *ConstraintNameCollisionError {
	return &ConstraintNameCollisionError{Scope: scope, Name: name, Tables: tables}
}

// IsConstraintNameCollision returns true if the error is a ConstraintNameCollisionError.
func IsConstraintNameCollision(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintNameCollisionError
	return errors.As(err, &e) || errors.Is(err, ErrConstraintNameCollision)
}

// ConstraintKind classifies database constraint violations.
type ConstraintKind uint8

// Constraint violation kinds.
const (
	ConstraintNone ConstraintKind = iota
	ConstraintUnique
	ConstraintForeignKey
	ConstraintCheck
)

// String returns the kind name.
func (k ConstraintKind) String() string {
	switch k {
	case ConstraintUnique:
		return "unique"
	case ConstraintForeignKey:
		return "foreign key"
	case ConstraintCheck:
		return "check"
	}
	return "none"
}

// StatementExecutionError wraps a driver error with the failing statement
// and its position in the plan. The whole plan is kept for diagnostics.
type StatementExecutionError struct {
	Position   int      // Zero-based position of the failing statement
	Statement  string   // Failing statement text
	Planned    []string // Every statement of the plan
	Constraint ConstraintKind
	Err        error // Underlying driver error
}

// Error returns the error string.
func (e *StatementExecutionError) Error() string {
	return fmt.Sprintf("relmap: statement %d of %d failed: %s: %v", e.Position+1, len(e.Planned), e.Statement, e.Err)
}

// Unwrap returns the underlying error.
func (e *StatementExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrStatementExecution.
func (e *StatementExecutionError) Is(err error) bool {
	return err == ErrStatementExecution
}

// IsStatementExecution returns true if the error is a StatementExecutionError.
func IsStatementExecution(err error) bool {
	if err == nil {
		return false
	}
	var e *StatementExecutionError
	return errors.As(err, &e)
}

// OrphanResolutionError represents an orphan-removal candidate that could not
// be resolved to exactly one row.
type OrphanResolutionError struct {
	Entity string // Entity type of the orphan
	Edge   string // Edge of the parent the orphan was removed from
	ID     any    // Optional: the orphan's key
	Reason string
}

// Error returns the error string.
func (e *OrphanResolutionError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("relmap: orphan %s (id=%v) removed from edge %q: %s", e.Entity, e.ID, e.Edge, e.Reason)
	}
	return fmt.Sprintf("relmap: orphan %s removed from edge %q: %s", e.Entity, e.Edge, e.Reason)
}

// Is reports whether the target error matches ErrOrphanResolution.
func (e *OrphanResolutionError) Is(err error) bool {
	return err == ErrOrphanResolution
}

// NewOrphanResolutionError returns a new OrphanResolutionError.
func NewOrphanResolutionError(entity, edge string, id any, reason string) *OrphanResolutionError {
	return &OrphanResolutionError{Entity: entity, Edge: edge, ID: id, Reason: reason}
}

// IsOrphanResolution returns true if the error is an OrphanResolutionError.
func IsOrphanResolution(err error) bool {
	if err == nil {
		return false
	}
	var e *OrphanResolutionError
	return errors.As(err, &e) || errors.Is(err, ErrOrphanResolution)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("relmap: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during planning.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "relmap: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("relmap: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
