// Package edge provides fluent builders for describing the relations between
// entities.
//
// An association edge is declared with To on its owner, its back-reference
// with From on the target. The relation type follows from the Unique flags
// of the two sides:
//
//	edge.To("posts", "Post")                             // O2M
//	edge.From("author", "User").Ref("posts").Unique()    // M2O
//
//	edge.To("profile", "Profile").Unique()               // O2O
//	edge.From("user", "User").Ref("profile").Unique()    // O2O
//
//	edge.To("tags", "Tag")                               // M2M
//	edge.From("posts", "Post").Ref("tags")               // M2M
//
// An association edge without back-reference is O2M, or O2O when unique.
//
// # Foreign keys
//
// The foreign key of O2M and O2O relations lives on the table of the target
// of the association edge. Its column is set with Field on either side, and
// defaults to "<inverse edge>_id" or "<owner>_<edge>". M2M relations are
// stored in a join table, named with Through or "<owner>_<edge>".
//
//	edge.From("author", "User").
//		Ref("posts").
//		Unique().
//		Required().
//		Field("author_id").
//		OnDelete("CASCADE")
//
// # Cascades
//
// Cascade names the operations that propagate from the owner of an edge to
// its targets when the owner is saved or removed:
//
//	edge.To("comments", "Comment").
//		Cascade("insert", "update", "remove").
//		OrphanRemoval()
package edge
