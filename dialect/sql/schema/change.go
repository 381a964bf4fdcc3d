package schema

import (
	"fmt"
	"strings"
)

// ChangeKind identifies the variant of a Change.
type ChangeKind uint8

// Change kinds.
const (
	CreateTable ChangeKind = iota + 1
	DropTable
	AddColumn
	DropColumn
	ChangeColumn
	AddIndex
	DropIndex
	AddUnique
	DropUnique
	AddCheck
	DropCheck
	AddExclusion
	DropExclusion
	AddForeignKey
	DropForeignKey
	RenameTable
	RenameColumn
	ChangeComment
	ChangePrimaryKey
)

var kindNames = map[ChangeKind]string{
	CreateTable:      "CreateTable",
	DropTable:        "DropTable",
	AddColumn:        "AddColumn",
	DropColumn:       "DropColumn",
	ChangeColumn:     "ChangeColumn",
	AddIndex:         "AddIndex",
	DropIndex:        "DropIndex",
	AddUnique:        "AddUnique",
	DropUnique:       "DropUnique",
	AddCheck:         "AddCheck",
	DropCheck:        "DropCheck",
	AddExclusion:     "AddExclusion",
	DropExclusion:    "DropExclusion",
	AddForeignKey:    "AddForeignKey",
	DropForeignKey:   "DropForeignKey",
	RenameTable:      "RenameTable",
	RenameColumn:     "RenameColumn",
	ChangeComment:    "ChangeComment",
	ChangePrimaryKey: "ChangePrimaryKey",
}

// String returns the kind name.
func (k ChangeKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ChangeKind(%d)", k)
}

// Change is a single schema modification. Kind selects which of the
// remaining fields are meaningful:
//
//	CreateTable, DropTable              Table
//	AddColumn, DropColumn               Table, Column
//	ChangeColumn                        Table, From (live), Column (target)
//	AddIndex, DropIndex                 Table, Index
//	AddUnique, DropUnique               Table, Unique
//	AddCheck, DropCheck                 Table, Check
//	AddExclusion, DropExclusion         Table, Exclusion
//	AddForeignKey, DropForeignKey       Table, ForeignKey
//	RenameTable                         Table (target), OldName, NewName
//	RenameColumn                        Table, OldName, NewName
//	ChangeComment                       Table, Column (nil for the table), FromComment, Comment
//	ChangePrimaryKey                    Table, FromPrimaryKey, PrimaryKey, FromPrimaryKeyName
//
// Changes of one planning call never share mutable state with the models
// they were computed from.
type Change struct {
	Kind           ChangeKind
	Table          *Table
	Column         *Column
	From           *Column
	Index          *Index
	Unique         *Unique
	Check          *Check
	Exclusion      *Exclusion
	ForeignKey     *ForeignKey
	OldName        string
	NewName        string
	FromComment    string
	Comment        string
	FromPrimaryKey []string
	PrimaryKey     []string
	// FromPrimaryKeyName names the constraint a ChangePrimaryKey drops.
	// Empty means the dialect default.
	FromPrimaryKeyName string
}

// Reverse returns the change that undoes c.
func (c Change) Reverse() Change {
	r := c
	switch c.Kind {
	case CreateTable:
		r.Kind = DropTable
	case DropTable:
		r.Kind = CreateTable
	case AddColumn:
		r.Kind = DropColumn
	case DropColumn:
		r.Kind = AddColumn
	case ChangeColumn:
		r.From, r.Column = c.Column, c.From
	case AddIndex:
		r.Kind = DropIndex
	case DropIndex:
		r.Kind = AddIndex
	case AddUnique:
		r.Kind = DropUnique
	case DropUnique:
		r.Kind = AddUnique
	case AddCheck:
		r.Kind = DropCheck
	case DropCheck:
		r.Kind = AddCheck
	case AddExclusion:
		r.Kind = DropExclusion
	case DropExclusion:
		r.Kind = AddExclusion
	case AddForeignKey:
		r.Kind = DropForeignKey
	case DropForeignKey:
		r.Kind = AddForeignKey
	case RenameTable:
		r.OldName, r.NewName = c.NewName, c.OldName
		t := c.Table.Clone()
		t.Name = c.OldName
		r.Table = t
	case RenameColumn:
		r.OldName, r.NewName = c.NewName, c.OldName
	case ChangeComment:
		r.FromComment, r.Comment = c.Comment, c.FromComment
	case ChangePrimaryKey:
		r.FromPrimaryKey, r.PrimaryKey = c.PrimaryKey, c.FromPrimaryKey
		r.FromPrimaryKeyName = ""
	}
	return r
}

// ObjectName returns the name of the object the change creates, drops or
// alters inside its table: a column, constraint or index name. It is empty
// for table level changes.
func (c Change) ObjectName() string {
	switch c.Kind {
	case AddColumn, DropColumn, ChangeColumn:
		return c.Column.Name
	case AddIndex, DropIndex:
		return c.Index.Name
	case AddUnique, DropUnique:
		return c.Unique.Name
	case AddCheck, DropCheck:
		return c.Check.Name
	case AddExclusion, DropExclusion:
		return c.Exclusion.Name
	case AddForeignKey, DropForeignKey:
		return c.ForeignKey.Symbol
	case RenameColumn:
		return c.NewName
	case ChangeComment:
		if c.Column != nil {
			return c.Column.Name
		}
	}
	return ""
}

// Key returns a deterministic identity of the change, used to break ties
// between otherwise unordered changes.
func (c Change) Key() string {
	return c.Table.QualifiedName() + "|" + c.Kind.String() + "|" + c.ObjectName()
}

// String returns a short human readable description of the change,
// e.g. "AddForeignKey children(parent_id)".
func (c Change) String() string {
	t := c.Table.QualifiedName()
	switch c.Kind {
	case CreateTable, DropTable:
		return c.Kind.String() + " " + t
	case AddForeignKey, DropForeignKey:
		return fmt.Sprintf("%s %s(%s)", c.Kind, t, strings.Join(c.ForeignKey.Columns, ", "))
	case RenameTable:
		return fmt.Sprintf("%s %s -> %s", c.Kind, QualifiedName(c.Table.Schema, c.OldName), c.NewName)
	case RenameColumn:
		return fmt.Sprintf("%s %s.%s -> %s", c.Kind, t, c.OldName, c.NewName)
	case ChangePrimaryKey:
		return fmt.Sprintf("%s %s(%s)", c.Kind, t, strings.Join(c.PrimaryKey, ", "))
	}
	if name := c.ObjectName(); name != "" {
		return c.Kind.String() + " " + t + "." + name
	}
	return c.Kind.String() + " " + t
}

// Reverse returns the changes undoing the given list, in reverse order.
func Reverse(changes []Change) []Change {
	r := make([]Change, len(changes))
	for i, c := range changes {
		r[len(changes)-1-i] = c.Reverse()
	}
	return r
}
