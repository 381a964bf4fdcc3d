package field

import (
	"errors"
	"fmt"
	"slices"
)

//go:generate go run internal/gen.go

// A Descriptor for field configuration.
type Descriptor struct {
	Name       string // field name.
	Type       Type   // logical column type.
	StorageKey string // column name. Defaults to Name.
	Size       int64  // max length of strings, dimension of vectors.
	Precision  int    // precision of decimals.
	Scale      int    // scale of decimals.
	Optional   bool   // nullable column.
	Unique     bool   // unique column.
	Default    *string
	Enums      []string // values of enum fields.
	Comment    string
	SchemaType map[string]string // column type override per dialect.

	// Assigned marks ID fields whose values are set by the caller instead
	// of being generated.
	Assigned bool
}

// Column returns the column name of the field.
func (d *Descriptor) Column() string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.Name
}

// Err reports the misconfigurations of the field.
func (d *Descriptor) Err() error {
	var errs []error
	switch {
	case d.Name == "":
		errs = append(errs, errors.New("field: missing name"))
	case !d.Type.Valid():
		errs = append(errs, fmt.Errorf("field %q: invalid type", d.Name))
	case d.Type == TypeEnum && len(d.Enums) == 0:
		errs = append(errs, fmt.Errorf("field %q: enum without values", d.Name))
	case d.Type != TypeEnum && len(d.Enums) > 0:
		errs = append(errs, fmt.Errorf("field %q: values set on %s field", d.Name, d.Type))
	case d.Size < 0:
		errs = append(errs, fmt.Errorf("field %q: negative size", d.Name))
	case d.Scale > d.Precision:
		errs = append(errs, fmt.Errorf("field %q: scale %d exceeds precision %d", d.Name, d.Scale, d.Precision))
	}
	for i, v := range d.Enums {
		if v == "" {
			errs = append(errs, fmt.Errorf("field %q: empty enum value", d.Name))
		} else if slices.Contains(d.Enums[:i], v) {
			errs = append(errs, fmt.Errorf("field %q: duplicate enum value %q", d.Name, v))
		}
	}
	return errors.Join(errs...)
}

// Builder is the builder of a field descriptor.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: t}}
}

// New returns a builder for a field of the given type.
func New(name string, t Type) *Builder { return newBuilder(name, t) }

// String returns a new Field with type string.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Text returns a new string field without limits on its size.
func Text(name string) *Builder { return newBuilder(name, TypeText) }

// Bool returns a new Field with type bool.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Time returns a new Field with type timestamp.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// UUID returns a new Field with type UUID.
func UUID(name string) *Builder { return newBuilder(name, TypeUUID) }

// JSON returns a new Field with type json.
func JSON(name string) *Builder { return newBuilder(name, TypeJSON) }

// Bytes returns a new Field with type bytes/buffer.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytes) }

// Enum returns a new Field with type enum. Values are set with Values.
func Enum(name string) *Builder { return newBuilder(name, TypeEnum) }

// Decimal returns a new decimal field with the given precision and scale.
func Decimal(name string, precision, scale int) *Builder {
	b := newBuilder(name, TypeDecimal)
	b.desc.Precision, b.desc.Scale = precision, scale
	return b
}

// Vector returns a new vector field of the given dimension.
func Vector(name string, dim int64) *Builder {
	b := newBuilder(name, TypeVector)
	b.desc.Size = dim
	return b
}

// Optional makes the column nullable.
func (b *Builder) Optional() *Builder {
	b.desc.Optional = true
	return b
}

// Unique makes the field unique within all rows of the table.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Default sets the column default to the given SQL expression.
//
//	field.Time("created_at").Default("CURRENT_TIMESTAMP")
//	field.String("status").Default("'active'")
func (b *Builder) Default(expr string) *Builder {
	b.desc.Default = &expr
	return b
}

// MaxLen sets the maximum length of a string field.
func (b *Builder) MaxLen(n int64) *Builder {
	b.desc.Size = n
	return b
}

// Values appends values to an enum field.
func (b *Builder) Values(values ...string) *Builder {
	b.desc.Enums = append(b.desc.Enums, values...)
	return b
}

// StorageKey sets the column name of the field.
func (b *Builder) StorageKey(key string) *Builder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the comment of the column.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// SchemaType overrides the column type per dialect.
//
//	field.String("ip").SchemaType(map[string]string{
//		dialect.Postgres: "inet",
//	})
func (b *Builder) SchemaType(types map[string]string) *Builder {
	b.desc.SchemaType = types
	return b
}

// Assigned marks an ID field whose values are set by the caller.
func (b *Builder) Assigned() *Builder {
	b.desc.Assigned = true
	return b
}

// Descriptor returns the descriptor of the field.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
