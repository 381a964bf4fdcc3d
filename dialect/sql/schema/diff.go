package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/relmap/dialect"
)

// DiffOption configures Diff.
type DiffOption func(*diffConfig)

type diffConfig struct {
	caps         dialect.Capabilities
	owner        func(*Table) bool
	renameTables map[string]string            // old qualified name -> new qualified name
	renameCols   map[string]map[string]string // target table -> old -> new
}

// WithDialect enables capability checks, native type comparison and
// identifier truncation for the given dialect. Without it, types are
// compared by their logical description and no construct is rejected.
func WithDialect(name string) DiffOption {
	return func(c *diffConfig) {
		if caps, err := dialect.CapabilitiesOf(name); err == nil {
			c.caps = caps
		}
	}
}

// WithOwner restricts the live tables that may be dropped to the ones for
// which owned returns true. By default every introspected table is owned.
func WithOwner(owned func(*Table) bool) DiffOption {
	return func(c *diffConfig) {
		c.owner = owned
	}
}

// WithRenameTable declares that the live table old was renamed to new
// (qualified names). The hint replaces the drop/create pair by a rename.
func WithRenameTable(old, new string) DiffOption {
	return func(c *diffConfig) {
		c.renameTables[old] = new
	}
}

// WithRenameColumn declares that the column old of the given table
// (target qualified name) was renamed to new.
func WithRenameColumn(table, old, new string) DiffOption {
	return func(c *diffConfig) {
		if c.renameCols[table] == nil {
			c.renameCols[table] = make(map[string]string)
		}
		c.renameCols[table][old] = new
	}
}

// Differ computes the changes that turn live into target.
type Differ interface {
	Diff(target, live *Model) ([]Change, error)
}

// The DiffFunc type is an adapter to allow the use of ordinary function as Differ.
type DiffFunc func(target, live *Model) ([]Change, error)

// Diff calls f(target, live).
func (f DiffFunc) Diff(target, live *Model) ([]Change, error) {
	return f(target, live)
}

// DiffHook defines the "diff middleware". A function that gets a Differ and returns a Differ.
type DiffHook func(Differ) Differ

// Diff computes the unordered set of changes turning live into target.
//
// Tables are matched by qualified name and columns by name, unless a rename
// hint says otherwise. Constraints and indexes are matched by structural
// signature: an equal signature under another name is not a change, a
// changed signature is a drop and an add. Diff fails with a
// *relmap.CapabilityError when the target uses a construct the dialect
// cannot express, and with a *relmap.ConstraintNameCollisionError when two
// constraints of one scope share a name. Neither input is modified.
func Diff(target, live *Model, opts ...DiffOption) ([]Change, error) {
	cfg := &diffConfig{
		owner:        func(*Table) bool { return true },
		renameTables: make(map[string]string),
		renameCols:   make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	target = normalizeNames(foldUniqueIndexes(target), cfg.caps.MaxIdentifier)
	live = foldUniqueIndexes(live)
	if cfg.caps.Name == dialect.SQLite {
		for _, t := range target.Tables {
			markRowID(t)
		}
	}
	if cfg.caps.Name != "" {
		if err := checkCapabilities(target, cfg.caps); err != nil {
			return nil, err
		}
	}
	if err := checkNames(target); err != nil {
		return nil, err
	}
	if err := ValidateSchema(target, cfg.caps).Err(); err != nil {
		return nil, fmt.Errorf("schema: invalid target: %w", err)
	}
	d := &differ{diffConfig: cfg, target: target, live: live}
	return d.diff(), nil
}

type differ struct {
	*diffConfig
	target, live *Model
	changes      []Change
	// pairs of matched tables, live and target, keyed by target name.
	pairs map[string][2]*Table
	// retyped holds "table.column" of columns whose type changes.
	retyped map[string]bool
}

func (d *differ) add(c Change) {
	d.changes = append(d.changes, c)
}

func (d *differ) diff() []Change {
	d.pairs = make(map[string][2]*Table)
	renamedFrom := make(map[string]bool)
	for _, t := range d.target.sorted() {
		if t.View {
			continue
		}
		if lt, ok := d.live.Table(t.QualifiedName()); ok {
			d.pairs[t.QualifiedName()] = [2]*Table{lt, t}
			continue
		}
		if old := d.renamedFrom(t.QualifiedName()); old != nil {
			renamedFrom[old.QualifiedName()] = true
			d.add(Change{Kind: RenameTable, Table: t.Clone(), OldName: old.Name, NewName: t.Name})
			d.pairs[t.QualifiedName()] = [2]*Table{old, t}
			continue
		}
		d.createTable(t)
	}
	var dropped []*Table
	for _, lt := range d.live.sorted() {
		if lt.View || renamedFrom[lt.QualifiedName()] {
			continue
		}
		if _, ok := d.target.Table(lt.QualifiedName()); ok || !d.owner(lt) {
			continue
		}
		dropped = append(dropped, lt)
	}
	d.dropTables(dropped)
	d.retyped = make(map[string]bool)
	names := make([]string, 0, len(d.pairs))
	for name := range d.pairs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		d.diffColumns(d.pairs[name][0], d.pairs[name][1])
	}
	for _, name := range names {
		d.diffConstraints(d.pairs[name][0], d.pairs[name][1])
	}
	return d.changes
}

func (d *differ) renamedFrom(newName string) *Table {
	for old, n := range d.renameTables {
		if n != newName {
			continue
		}
		if lt, ok := d.live.Table(old); ok {
			if _, exists := d.live.Table(newName); !exists {
				return lt
			}
		}
	}
	return nil
}

// createTable emits a CreateTable holding the table without its foreign
// keys, followed by one AddForeignKey per key.
func (d *differ) createTable(t *Table) {
	ct := t.Clone()
	ct.ForeignKeys = nil
	if !d.comments() {
		stripComments(ct)
	}
	d.add(Change{Kind: CreateTable, Table: ct})
	for _, fk := range t.ForeignKeys {
		d.add(Change{Kind: AddForeignKey, Table: ct, ForeignKey: fk.Clone()})
	}
}

// dropTables emits the DropTable changes. Foreign keys of dropped tables are
// dropped explicitly where the dialect can, so that tables referencing each
// other can be dropped in any order.
func (d *differ) dropTables(tables []*Table) {
	for _, lt := range tables {
		dt := lt.Clone()
		if d.caps.Name == "" || d.caps.AlterForeignKeys {
			for _, fk := range lt.ForeignKeys {
				d.add(Change{Kind: DropForeignKey, Table: dt, ForeignKey: fk.Clone()})
			}
			dt.ForeignKeys = nil
		}
		d.add(Change{Kind: DropTable, Table: dt})
	}
}

func (d *differ) comments() bool {
	return d.caps.Name == "" || d.caps.Comments
}

func stripComments(t *Table) {
	t.Comment = ""
	for _, c := range t.Columns {
		c.Comment = ""
	}
}

func (d *differ) diffColumns(live, target *Table) {
	renames := d.renameCols[target.QualifiedName()]
	liveCols := make(map[string]*Column, len(live.Columns))
	for _, c := range live.Columns {
		liveCols[c.Name] = c
	}
	matched := make(map[string]bool)
	for _, tc := range target.Columns {
		lc, ok := liveCols[tc.Name]
		if !ok {
			for old, n := range renames {
				if oc, found := liveCols[old]; n == tc.Name && found {
					if _, taken := target.Column(old); !taken {
						d.add(Change{Kind: RenameColumn, Table: target.Clone(), OldName: old, NewName: tc.Name})
						lc, ok = oc, true
					}
				}
			}
		}
		if !ok {
			d.add(Change{Kind: AddColumn, Table: target.Clone(), Column: tc.Clone()})
			continue
		}
		matched[lc.Name] = true
		if !d.columnEqual(lc, tc) {
			from := lc.Clone()
			from.Name = tc.Name
			d.add(Change{Kind: ChangeColumn, Table: target.Clone(), From: from, Column: tc.Clone()})
			if d.typeChanged(lc, tc) {
				d.retyped[target.QualifiedName()+"."+tc.Name] = true
			}
		}
		if d.comments() && lc.Comment != tc.Comment {
			d.add(Change{Kind: ChangeComment, Table: target.Clone(), Column: tc.Clone(), FromComment: lc.Comment, Comment: tc.Comment})
		}
	}
	for _, lc := range live.Columns {
		if !matched[lc.Name] {
			d.add(Change{Kind: DropColumn, Table: target.Clone(), Column: lc.Clone()})
		}
	}
	if !slices.Equal(live.PrimaryKey, target.PrimaryKey) {
		d.add(Change{Kind: ChangePrimaryKey, Table: target.Clone(), FromPrimaryKey: slices.Clone(live.PrimaryKey), PrimaryKey: slices.Clone(target.PrimaryKey), FromPrimaryKeyName: live.PrimaryKeyName})
	}
	if d.comments() && live.Comment != target.Comment {
		d.add(Change{Kind: ChangeComment, Table: target.Clone(), FromComment: live.Comment, Comment: target.Comment})
	}
}

func (d *differ) typeChanged(a, b *Column) bool {
	if d.caps.Name != "" {
		return nativeType(d.caps, a) != nativeType(d.caps, b)
	}
	return a.Type != b.Type || a.Size != b.Size || a.Precision != b.Precision || a.Scale != b.Scale
}

func (d *differ) columnEqual(a, b *Column) bool {
	return !d.typeChanged(a, b) &&
		a.Nullable == b.Nullable &&
		sameDefault(a.Default, b.Default) &&
		sameGeneration(a.Generation, b.Generation)
}

func sameDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return normalizeExpr(*a) == normalizeExpr(*b)
}

// sameGeneration treats rowid and increment as equal: both are rendered as
// the native auto-incrementing key of the dialect.
func sameGeneration(a, b Generation) bool {
	norm := func(g Generation) Generation {
		if g == GenRowID {
			return GenIncrement
		}
		if g == GenUUID {
			return GenNone
		}
		return g
	}
	return norm(a) == norm(b)
}

// normalizeExpr lowercases an expression, collapses white space and strips
// enclosing parentheses.
func normalizeExpr(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && balanced(s[1:len(s)-1]) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func (d *differ) diffConstraints(live, target *Table) {
	tt := target.Clone()
	dt := live.Clone()
	dt.Name, dt.Schema = target.Name, target.Schema
	renames := d.renameCols[target.QualifiedName()]
	// Live constraints are compared under the renamed column names.
	rename := func(cols []string) []string {
		out := slices.Clone(cols)
		for i, c := range out {
			if n, ok := renames[c]; ok {
				out[i] = n
			}
		}
		return out
	}
	// Dropped objects are emitted as they exist in the live schema, so
	// that their reversal recreates them under the original column names.
	liveIdx := cloneAll(live.Indexes, (*Index).Clone)
	origIdx := make(map[*Index]*Index, len(liveIdx))
	for i, idx := range liveIdx {
		origIdx[idx] = live.Indexes[i]
		for j := range idx.Parts {
			if n, ok := renames[idx.Parts[j].Column]; ok {
				idx.Parts[j].Column = n
			}
		}
	}
	for _, m := range match(liveIdx, target.Indexes, func(i *Index) string { return i.Name }, indexSig) {
		switch {
		case m.live == nil:
			d.add(Change{Kind: AddIndex, Table: tt, Index: m.target.Clone()})
		case m.target == nil:
			d.add(Change{Kind: DropIndex, Table: dt, Index: origIdx[m.live].Clone()})
		}
	}
	liveUniq := cloneAll(live.Uniques, (*Unique).Clone)
	origUniq := make(map[*Unique]*Unique, len(liveUniq))
	for i, u := range liveUniq {
		origUniq[u] = live.Uniques[i]
		u.Columns = rename(u.Columns)
	}
	for _, m := range match(liveUniq, target.Uniques, func(u *Unique) string { return u.Name }, uniqueSig) {
		switch {
		case m.live == nil:
			d.add(Change{Kind: AddUnique, Table: tt, Unique: m.target.Clone()})
		case m.target == nil:
			d.add(Change{Kind: DropUnique, Table: dt, Unique: origUniq[m.live].Clone()})
		}
	}
	for _, m := range match(live.Checks, target.Checks, func(c *Check) string { return c.Name }, checkSig) {
		switch {
		case m.live == nil:
			d.add(Change{Kind: AddCheck, Table: tt, Check: &Check{Name: m.target.Name, Expr: m.target.Expr}})
		case m.target == nil:
			d.add(Change{Kind: DropCheck, Table: dt, Check: &Check{Name: m.live.Name, Expr: m.live.Expr}})
		}
	}
	for _, m := range match(live.Exclusions, target.Exclusions, func(e *Exclusion) string { return e.Name }, exclusionSig) {
		switch {
		case m.live == nil:
			d.add(Change{Kind: AddExclusion, Table: tt, Exclusion: m.target.Clone()})
		case m.target == nil:
			d.add(Change{Kind: DropExclusion, Table: dt, Exclusion: m.live.Clone()})
		}
	}
	liveFKs := cloneAll(live.ForeignKeys, (*ForeignKey).Clone)
	origFK := make(map[*ForeignKey]*ForeignKey, len(liveFKs))
	for i, fk := range liveFKs {
		origFK[fk] = live.ForeignKeys[i]
		fk.Columns = rename(fk.Columns)
		if n, ok := d.renameTables[fk.RefTable]; ok {
			fk.RefTable = n
		}
		if ref, ok := d.pairs[fk.RefTable]; ok {
			fk.RefColumns = d.renamedColumns(ref[1].QualifiedName(), fk.RefColumns)
		}
	}
	for _, m := range match(liveFKs, target.ForeignKeys, func(fk *ForeignKey) string { return fk.Symbol }, fkSig) {
		switch {
		case m.live == nil:
			d.add(Change{Kind: AddForeignKey, Table: tt, ForeignKey: m.target.Clone()})
		case m.target == nil:
			d.add(Change{Kind: DropForeignKey, Table: dt, ForeignKey: origFK[m.live].Clone()})
		case d.touchesRetyped(target.QualifiedName(), m.live):
			// Keys over columns changing type are recreated around the change.
			d.add(Change{Kind: DropForeignKey, Table: dt, ForeignKey: origFK[m.live].Clone()})
			d.add(Change{Kind: AddForeignKey, Table: tt, ForeignKey: m.target.Clone()})
		}
	}
}

func (d *differ) renamedColumns(table string, cols []string) []string {
	renames := d.renameCols[table]
	out := slices.Clone(cols)
	for i, c := range out {
		if n, ok := renames[c]; ok {
			out[i] = n
		}
	}
	return out
}

func (d *differ) touchesRetyped(table string, fk *ForeignKey) bool {
	for _, c := range fk.Columns {
		if d.retyped[table+"."+c] {
			return true
		}
	}
	for _, c := range fk.RefColumns {
		if d.retyped[fk.RefTable+"."+c] {
			return true
		}
	}
	return false
}

type matched[T any] struct {
	live, target T
}

// match pairs live and target objects by signature. Pairs with an equal
// name are matched first, then the remaining objects with equal signature
// in declaration order. Unmatched objects are returned with a nil side.
func match[T comparable](live, target []T, name func(T) string, sig func(T) string) []matched[T] {
	var (
		zero    T
		out     []matched[T]
		used    = make([]bool, len(live))
		targets = make([]bool, len(target))
	)
	for i, t := range target {
		for j, l := range live {
			if !used[j] && name(l) == name(t) && sig(l) == sig(t) {
				used[j], targets[i] = true, true
				out = append(out, matched[T]{live: l, target: t})
				break
			}
		}
	}
	for i, t := range target {
		if targets[i] {
			continue
		}
		found := false
		for j, l := range live {
			if !used[j] && sig(l) == sig(t) {
				used[j], found = true, true
				out = append(out, matched[T]{live: l, target: t})
				break
			}
		}
		if !found {
			out = append(out, matched[T]{live: zero, target: t})
		}
	}
	for j, l := range live {
		if !used[j] {
			out = append(out, matched[T]{live: l, target: zero})
		}
	}
	return out
}

func indexSig(i *Index) string {
	var b strings.Builder
	fmt.Fprintf(&b, "unique=%t;", i.Unique)
	for _, p := range i.Parts {
		if p.Column != "" {
			b.WriteString("c:" + p.Column)
		} else {
			b.WriteString("x:" + normalizeExpr(p.Expr))
		}
		if p.Desc {
			b.WriteString(" desc")
		}
		b.WriteString(",")
	}
	method := strings.ToLower(i.Method)
	if method == "btree" {
		method = ""
	}
	fmt.Fprintf(&b, ";where=%s;method=%s", normalizeExpr(i.Where), method)
	return b.String()
}

func uniqueSig(u *Unique) string {
	return strings.Join(u.Columns, ",")
}

func checkSig(c *Check) string {
	return normalizeExpr(c.Expr)
}

func exclusionSig(e *Exclusion) string {
	var b strings.Builder
	method := strings.ToLower(e.Method)
	if method == "" {
		method = "gist"
	}
	b.WriteString(method + ";")
	for _, el := range e.Elements {
		fmt.Fprintf(&b, "%s with %s,", normalizeExpr(el.Expr), el.Operator)
	}
	b.WriteString(";where=" + normalizeExpr(e.Where))
	return b.String()
}

func fkSig(fk *ForeignKey) string {
	return fmt.Sprintf("%s;%s;%s;%s;%s;%d",
		strings.Join(fk.Columns, ","), fk.RefTable, strings.Join(fk.RefColumns, ","),
		fk.OnDelete.ConstName(), fk.OnUpdate.ConstName(), fk.Deferrable)
}
