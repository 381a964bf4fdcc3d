// Package loader reads entity metadata from YAML files and compiles it into
// the table model and node graph used by the planners.
//
//	entities:
//	  - name: User
//	    mixins: [time]
//	    fields:
//	      - {name: email, type: string, size: 255, unique: true}
//	    edges:
//	      - {name: posts, to: Post, cascade: [all]}
//	  - name: Post
//	    fields:
//	      - {name: title, type: string}
//	    edges:
//	      - {name: author, from: User, ref: posts, unique: true, required: true}
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	annotation "github.com/syssam/relmap/dialect/sqlschema"
	"github.com/syssam/relmap/schema"
	"github.com/syssam/relmap/schema/edge"
	"github.com/syssam/relmap/schema/field"
	"github.com/syssam/relmap/schema/index"
	"github.com/syssam/relmap/schema/mixin"
)

type yamlFile struct {
	Entities []yamlEntity `yaml:"entities"`
}

type yamlEntity struct {
	Name       string            `yaml:"name"`
	Table      string            `yaml:"table"`
	Schema     string            `yaml:"schema"`
	Comment    string            `yaml:"comment"`
	View       bool              `yaml:"view"`
	ID         *yamlField        `yaml:"id"`
	Mixins     []string          `yaml:"mixins"`
	SoftDelete string            `yaml:"soft_delete"`
	Fields     []yamlField       `yaml:"fields"`
	Edges      []yamlEdge        `yaml:"edges"`
	Indexes    []yamlIndex       `yaml:"indexes"`
	Checks     map[string]string `yaml:"checks"`
	Exclusions map[string]string `yaml:"exclusions"`
}

type yamlField struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Column     string            `yaml:"column"`
	Size       int64             `yaml:"size"`
	Precision  int               `yaml:"precision"`
	Scale      int               `yaml:"scale"`
	Optional   bool              `yaml:"optional"`
	Unique     bool              `yaml:"unique"`
	Default    *string           `yaml:"default"`
	Values     []string          `yaml:"values"`
	Comment    string            `yaml:"comment"`
	SchemaType map[string]string `yaml:"schema_type"`
	Assigned   bool              `yaml:"assigned"`
}

type yamlEdge struct {
	Name          string   `yaml:"name"`
	To            string   `yaml:"to"`
	From          string   `yaml:"from"`
	Ref           string   `yaml:"ref"`
	Unique        bool     `yaml:"unique"`
	Required      bool     `yaml:"required"`
	Field         string   `yaml:"field"`
	Through       string   `yaml:"through"`
	Cascade       []string `yaml:"cascade"`
	OrphanRemoval bool     `yaml:"orphan_removal"`
	OnDelete      string   `yaml:"on_delete"`
	OnUpdate      string   `yaml:"on_update"`
	Deferrable    string   `yaml:"deferrable"`
	Comment       string   `yaml:"comment"`
}

type yamlIndex struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
	Edges  []string `yaml:"edges"`
	Unique bool     `yaml:"unique"`
	Where  string   `yaml:"where"`
}

// Load reads and compiles the metadata file at path.
func Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading metadata file: %w", err)
	}
	entities, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return Compile(entities...)
}

// Parse decodes the entities of a metadata document. Unknown keys are
// rejected.
func Parse(data []byte) ([]*schema.Entity, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var yf yamlFile
	if err := dec.Decode(&yf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshalling YAML: %w", err)
	}
	entities := make([]*schema.Entity, 0, len(yf.Entities))
	for _, ye := range yf.Entities {
		e, err := ye.entity()
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", ye.Name, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (ye *yamlEntity) entity() (*schema.Entity, error) {
	e := &schema.Entity{
		Name:       ye.Name,
		SoftDelete: ye.SoftDelete,
		Comment:    ye.Comment,
		Annotations: []annotation.Annotation{{
			Table:      ye.Table,
			Schema:     ye.Schema,
			View:       ye.View,
			Checks:     ye.Checks,
			Exclusions: ye.Exclusions,
		}},
	}
	if ye.ID != nil {
		if ye.ID.Name == "" {
			ye.ID.Name = "id"
		}
		id, err := ye.ID.descriptor()
		if err != nil {
			return nil, err
		}
		e.ID = id
	}
	for _, name := range ye.Mixins {
		m, err := mixin.Named(name)
		if err != nil {
			return nil, err
		}
		e.Mixins = append(e.Mixins, m)
	}
	for _, yf := range ye.Fields {
		f, err := yf.descriptor()
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, f)
	}
	for _, yed := range ye.Edges {
		ed, err := yed.descriptor()
		if err != nil {
			return nil, err
		}
		e.Edges = append(e.Edges, ed)
	}
	for _, yi := range ye.Indexes {
		e.Indexes = append(e.Indexes, index.Fields(yi.Fields...).
			Edges(yi.Edges...).
			StorageKey(yi.Name).
			Where(yi.Where).
			Descriptor())
		if yi.Unique {
			e.Indexes[len(e.Indexes)-1].Unique = true
		}
	}
	return e, nil
}

func (yf *yamlField) descriptor() (*field.Descriptor, error) {
	t, err := field.ParseType(yf.Type)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", yf.Name, err)
	}
	return &field.Descriptor{
		Name:       yf.Name,
		Type:       t,
		StorageKey: yf.Column,
		Size:       yf.Size,
		Precision:  yf.Precision,
		Scale:      yf.Scale,
		Optional:   yf.Optional,
		Unique:     yf.Unique,
		Default:    yf.Default,
		Enums:      yf.Values,
		Comment:    yf.Comment,
		SchemaType: yf.SchemaType,
		Assigned:   yf.Assigned,
	}, nil
}

func (yed *yamlEdge) descriptor() (*edge.Descriptor, error) {
	var b *edge.Builder
	switch {
	case yed.To != "" && yed.From != "":
		return nil, fmt.Errorf("edge %q: both to and from are set", yed.Name)
	case yed.To != "":
		b = edge.To(yed.Name, yed.To)
	case yed.From != "":
		b = edge.From(yed.Name, yed.From).Ref(yed.Ref)
	default:
		return nil, fmt.Errorf("edge %q: one of to or from is required", yed.Name)
	}
	d := b.Field(yed.Field).
		Through(yed.Through).
		Cascade(yed.Cascade...).
		OnDelete(yed.OnDelete).
		OnUpdate(yed.OnUpdate).
		Comment(yed.Comment).
		Descriptor()
	d.Unique, d.Required, d.OrphanRemoval = yed.Unique, yed.Required, yed.OrphanRemoval
	d.Deferrable = yed.Deferrable
	if yed.To != "" {
		d.RefName = yed.Ref
	}
	return d, nil
}
