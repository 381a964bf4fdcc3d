// gen is a codegen cmd for generating the numeric field builders from template.
package main

import (
	"bytes"
	"go/format"
	"log"
	"os"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/relmap/schema/field"
)

// numeric is a builder to generate, with the column type it is stored as
// on each dialect.
type numeric struct {
	Type                    field.Type
	Postgres, MySQL, SQLite string
}

func main() {
	buf, err := os.ReadFile("internal/numeric.tmpl")
	if err != nil {
		log.Fatal("reading template file:", err)
	}
	titleCaser := cases.Title(language.English)
	tmpl := template.Must(template.New("numeric").
		Funcs(template.FuncMap{"title": titleCaser.String}).
		Parse(string(buf)))
	b := &bytes.Buffer{}
	if err = tmpl.Execute(b, []numeric{
		{field.TypeInt, "bigint", "bigint", "integer"},
		{field.TypeUint, "bigint", "bigint unsigned", "integer"},
		{field.TypeInt8, "smallint", "tinyint", "integer"},
		{field.TypeInt16, "smallint", "smallint", "integer"},
		{field.TypeInt32, "integer", "int", "integer"},
		{field.TypeInt64, "bigint", "bigint", "integer"},
		{field.TypeUint8, "smallint", "tinyint unsigned", "integer"},
		{field.TypeUint16, "integer", "smallint unsigned", "integer"},
		{field.TypeUint32, "bigint", "int unsigned", "integer"},
		{field.TypeUint64, "bigint", "bigint unsigned", "integer"},
		{field.TypeFloat64, "double precision", "double", "real"},
		{field.TypeFloat32, "real", "float", "real"},
	}); err != nil {
		log.Fatal("executing template:", err)
	}
	if buf, err = format.Source(b.Bytes()); err != nil {
		log.Fatal("formatting output:", err)
	}
	if err = os.WriteFile("numeric.go", buf, 0o644); err != nil {
		log.Fatal("writing go file:", err)
	}
}
