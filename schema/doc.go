// Package schema describes the entity metadata mapped by relmap: entities,
// their fields, edges and indexes, built with the field, edge and index
// subpackages and shared through mixins.
//
//	user := &schema.Entity{
//		Name:   "User",
//		Mixins: []schema.Mixin{mixin.Time{}},
//		Fields: []*field.Descriptor{
//			field.String("email").Unique().MaxLen(255).Descriptor(),
//			field.String("name").Descriptor(),
//		},
//		Edges: []*edge.Descriptor{
//			edge.To("posts", "Post").Cascade("all").Descriptor(),
//		},
//		Indexes: []*index.Descriptor{
//			index.Fields("name").Descriptor(),
//		},
//	}
//
// Entities are compiled by the loader package into the table model used by
// schema synchronization and the node graph used by persistence planning.
// Table names default to the plural snake case form of the entity name and
// are overridden with a sqlschema.Table annotation.
package schema
