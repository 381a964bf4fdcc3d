package field

import (
	"fmt"
	"strings"
)

// Type is the logical column type of the schema model. It is dialect
// neutral; the DDL renderer and the inspector map it to and from the
// native type of each dialect.
type Type uint8

// List of logical types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeTime
	TypeJSON
	TypeUUID
	TypeBytes
	TypeEnum
	TypeString
	TypeText
	TypeDecimal
	TypeVector
	TypeOther
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint
	TypeUint64
	TypeFloat32
	TypeFloat64
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeJSON:    "json",
	TypeUUID:    "uuid",
	TypeBytes:   "bytes",
	TypeEnum:    "enum",
	TypeString:  "string",
	TypeText:    "text",
	TypeDecimal: "decimal",
	TypeVector:  "vector",
	TypeOther:   "other",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeUint8:   "uint8",
	TypeUint16:  "uint16",
	TypeUint32:  "uint32",
	TypeUint:    "uint",
	TypeUint64:  "uint64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t >= TypeInt8 && t < endTypes
}

// Integer reports if the given type is an integral type.
func (t Type) Integer() bool {
	return t.Numeric() && t != TypeFloat32 && t != TypeFloat64
}

// Float reports if the given type is a float type.
func (t Type) Float() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// ParseType returns the type with the given name. Aliases commonly used in
// metadata files ("integer", "bigint", "varchar", "boolean", ...) are
// accepted.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t := TypeBool; t < endTypes; t++ {
		if typeNames[t] == name {
			return t, nil
		}
	}
	if t, ok := typeAliases[name]; ok {
		return t, nil
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", name)
}

var typeAliases = map[string]Type{
	"boolean":   TypeBool,
	"integer":   TypeInt,
	"smallint":  TypeInt16,
	"bigint":    TypeInt64,
	"varchar":   TypeString,
	"timestamp": TypeTime,
	"datetime":  TypeTime,
	"float":     TypeFloat64,
	"double":    TypeFloat64,
	"real":      TypeFloat32,
	"numeric":   TypeDecimal,
	"blob":      TypeBytes,
	"bytea":     TypeBytes,
	"jsonb":     TypeJSON,
}
