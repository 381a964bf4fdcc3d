package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// hashSuffixLen is the length of "_" followed by a 16 digit hex hash.
const hashSuffixLen = 17

// Truncate shortens identifiers longer than max to a prefix of the name
// followed by a hash of the full name. Distinct long names stay distinct
// after truncation. A max of zero disables truncation.
func Truncate(name string, max int) string {
	if max <= hashSuffixLen || len(name) <= max {
		return name
	}
	return fmt.Sprintf("%s_%016x", name[:max-hashSuffixLen], xxh3.HashString(name))
}

func defaultName(t *Table, cols []string, suffix string) string {
	parts := append([]string{t.Name}, cols...)
	return strings.Join(append(parts, suffix), "_")
}

func numbered(t *Table, suffix string, i int) string {
	if i == 0 {
		return t.Name + "_" + suffix
	}
	return t.Name + "_" + suffix + strconv.Itoa(i)
}

// normalizeNames fills in missing constraint names and truncates names
// exceeding the identifier limit of the dialect. It works on a clone.
func normalizeNames(m *Model, max int) *Model {
	m = m.Clone()
	for _, t := range m.Tables {
		for i, idx := range t.Indexes {
			if idx.Name == "" {
				cols := idx.Columns()
				if len(cols) != len(idx.Parts) {
					cols = append(cols, "expr"+strconv.Itoa(i))
				}
				idx.Name = defaultName(t, cols, "idx")
			}
			idx.Name = Truncate(idx.Name, max)
		}
		for _, u := range t.Uniques {
			if u.Name == "" {
				u.Name = defaultName(t, u.Columns, "key")
			}
			u.Name = Truncate(u.Name, max)
		}
		for i, c := range t.Checks {
			if c.Name == "" {
				c.Name = numbered(t, "check", i)
			}
			c.Name = Truncate(c.Name, max)
		}
		for i, e := range t.Exclusions {
			if e.Name == "" {
				e.Name = numbered(t, "excl", i)
			}
			e.Name = Truncate(e.Name, max)
		}
		for _, fk := range t.ForeignKeys {
			if fk.Symbol == "" {
				fk.Symbol = defaultName(t, fk.Columns, "fkey")
			}
			fk.Symbol = Truncate(fk.Symbol, max)
		}
	}
	return m
}

// foldUniqueIndexes returns a clone of m where unique indexes over plain
// columns are represented as unique constraints. Databases report both
// forms as the same object, so the two are not told apart.
func foldUniqueIndexes(m *Model) *Model {
	m = m.Clone()
	for _, t := range m.Tables {
		kept := t.Indexes[:0]
		for _, idx := range t.Indexes {
			cols := idx.Columns()
			if !idx.Unique || idx.Where != "" || idx.Method != "" || len(cols) != len(idx.Parts) || hasDesc(idx) {
				kept = append(kept, idx)
				continue
			}
			t.Uniques = append(t.Uniques, &Unique{Name: idx.Name, Columns: cols})
		}
		t.Indexes = kept
	}
	return m
}

func hasDesc(idx *Index) bool {
	for _, p := range idx.Parts {
		if p.Desc {
			return true
		}
	}
	return false
}

// markRowID marks a single integer primary key column of a SQLite table as
// an alias of the rowid.
func markRowID(t *Table) {
	if len(t.PrimaryKey) != 1 {
		return
	}
	if c, ok := t.Column(t.PrimaryKey[0]); ok && c.Type.Integer() && c.Generation == GenNone {
		c.Generation = GenRowID
	}
}
