/*
Package storage provides the authoritative, durable object store behind
pkg/objectcache's write-back cache: objects, Move packages, and received-
object markers, plus the block and commit buckets pkg/blockstore and
pkg/commitlog share the same database file with.

# Architecture

BoltObjectStore opens a single bbolt database and creates one bucket per
entity kind, following the same bucket-per-entity layout as the rest of
this substrate's bbolt-backed packages:

	objects          (ObjectID -> latest Object)
	objects_by_key   (ObjectID|Version -> Object, full version history)
	packages         (ObjectID -> MovePackage)
	markers          (ObjectID|Version -> ReceivedMarker)

# Transaction Model

Reads run inside db.View. WriteBatch writes objects and markers inside
a single db.Update, so they become visible to readers together; commits
are written afterwards in a separate block-store transaction and are not
part of that atomic unit.

# See Also

  - pkg/objectcache for the write-back cache layered on top
  - pkg/blockstore for the block/commit buckets sharing this database
  - pkg/types for the Object, MovePackage, and ReceivedMarker shapes
*/
package storage
