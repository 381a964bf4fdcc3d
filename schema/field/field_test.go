package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/schema/field"
)

func TestString(t *testing.T) {
	fd := field.String("email").
		Unique().
		MaxLen(255).
		StorageKey("email_address").
		Comment("login").
		Descriptor()
	assert.Equal(t, "email", fd.Name)
	assert.Equal(t, field.TypeString, fd.Type)
	assert.Equal(t, "email_address", fd.Column())
	assert.EqualValues(t, 255, fd.Size)
	assert.True(t, fd.Unique)
	assert.False(t, fd.Optional)
	assert.Equal(t, "login", fd.Comment)
	require.NoError(t, fd.Err())

	fd = field.Text("bio").Optional().Default("''").Descriptor()
	assert.Equal(t, "bio", fd.Column())
	assert.True(t, fd.Optional)
	require.NotNil(t, fd.Default)
	assert.Equal(t, "''", *fd.Default)
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		b    *field.Builder
		want field.Type
	}{
		{field.Int("a"), field.TypeInt},
		{field.Int8("a"), field.TypeInt8},
		{field.Int16("a"), field.TypeInt16},
		{field.Int32("a"), field.TypeInt32},
		{field.Int64("a"), field.TypeInt64},
		{field.Uint("a"), field.TypeUint},
		{field.Uint8("a"), field.TypeUint8},
		{field.Uint16("a"), field.TypeUint16},
		{field.Uint32("a"), field.TypeUint32},
		{field.Uint64("a"), field.TypeUint64},
		{field.Float32("a"), field.TypeFloat32},
		{field.Float64("a"), field.TypeFloat64},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			fd := tt.b.Descriptor()
			assert.Equal(t, tt.want, fd.Type)
			assert.True(t, fd.Type.Numeric())
			require.NoError(t, fd.Err())
		})
	}

	fd := field.Decimal("price", 10, 2).Descriptor()
	assert.Equal(t, field.TypeDecimal, fd.Type)
	assert.Equal(t, 10, fd.Precision)
	assert.Equal(t, 2, fd.Scale)
}

func TestOther(t *testing.T) {
	fd := field.UUID("id").Assigned().Descriptor()
	assert.Equal(t, field.TypeUUID, fd.Type)
	assert.True(t, fd.Assigned)

	fd = field.Vector("embedding", 3).Descriptor()
	assert.Equal(t, field.TypeVector, fd.Type)
	assert.EqualValues(t, 3, fd.Size)

	fd = field.String("ip").SchemaType(map[string]string{dialect.Postgres: "inet"}).Descriptor()
	assert.Equal(t, "inet", fd.SchemaType[dialect.Postgres])

	for b, typ := range map[*field.Builder]field.Type{
		field.Bool("a"):  field.TypeBool,
		field.Time("a"):  field.TypeTime,
		field.JSON("a"):  field.TypeJSON,
		field.Bytes("a"): field.TypeBytes,
	} {
		assert.Equal(t, typ, b.Descriptor().Type)
	}
}

func TestDescriptor_Err(t *testing.T) {
	tests := []struct {
		name string
		desc *field.Descriptor
		err  string
	}{
		{"missing name", field.String("").Descriptor(), "missing name"},
		{"invalid type", field.New("a", field.TypeInvalid).Descriptor(), `field "a": invalid type`},
		{"enum without values", field.Enum("status").Descriptor(), "enum without values"},
		{"values on string", field.String("status").Values("a").Descriptor(), "values set on string field"},
		{"negative size", field.String("a").MaxLen(-1).Descriptor(), "negative size"},
		{"scale", field.Decimal("a", 2, 4).Descriptor(), "scale 4 exceeds precision 2"},
		{"empty value", field.Enum("status").Values("a", "").Descriptor(), "empty enum value"},
		{"duplicate value", field.Enum("status").Values("a", "b", "a").Descriptor(), `duplicate enum value "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorContains(t, tt.desc.Err(), tt.err)
		})
	}
	require.NoError(t, field.Enum("status").Values("on", "off").Descriptor().Err())
}
