// Package mixin provides the base mixin implementation and the built-in
// mixins of entity schemas.
//
// A mixin is a reusable set of fields and indexes embedded in multiple
// entities. Custom mixins embed Schema and override the methods they need:
//
//	type Audit struct {
//		mixin.Schema
//	}
//
//	func (Audit) Fields() []*field.Descriptor {
//		return []*field.Descriptor{
//			field.String("created_by").Optional().Descriptor(),
//			field.String("updated_by").Optional().Descriptor(),
//		}
//	}
//
// Built-in mixins:
//
//   - Time: created_at and updated_at
//   - CreateTime, UpdateTime: one of the two
//   - SoftDelete: deleted_at, used for soft removal and recovery
//   - TimeSoftDelete: all three
package mixin
