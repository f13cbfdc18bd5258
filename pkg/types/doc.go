/*
Package types defines the core data model shared by the execution layer:
objects, owners, gas, and transaction effects. These types are used by
pkg/execution, pkg/gas, pkg/objectcache, pkg/accumulator, and pkg/storage
for state management and effects serialization.

# Architecture

The types package is the foundation of the execution data model. It defines:

  - Addressable objects with versioned content and an owner
  - The owner sum type (address-owned, object-owned, shared, immutable)
  - Gas coins and the per-transaction cost summary
  - Transaction effects: the canonical, versioned on-chain result record

All types are designed to be:
  - Serializable (JSON; canonical encoding lives in pkg/block for digests)
  - Immutable where practical (new Object values for each version)
  - Self-documenting (clear field names and comments)

# Core Types

Object Model:
  - ObjectID: stable 32-byte identifier, constant across versions
  - Version: monotonic per-id sequence number
  - ObjectDigest: content hash of one version of an object
  - Owner: AddressOwner, ObjectOwner, Shared, or Immutable
  - Object: id + version + digest + owner + type tag + storage rebate + content

Effects:
  - TransactionEffects: status, gas summary, object deltas, events, dependencies
  - ObjectRef: (ObjectID, Version, ObjectDigest) triple referencing one object version
  - GasCostSummary: computation, storage cost, storage rebate, non-refundable fee

# Invariants

  - An object's version strictly increases across writes to the same id.
  - An Immutable-owned object is never mutated or deleted.
  - A Shared-owned object's InitialSharedVersion never changes once set.
  - A TransactionEffects object id appears in at most one of
    {Created, Mutated, Unwrapped, Deleted, Wrapped}.
  - Deleted and Wrapped object versions equal priorVersion+1 (the Lamport
    rule: a version advances past the maximum version of any touched input).

# Thread Safety

Object and TransactionEffects values are treated as immutable snapshots
once constructed; callers that need to mutate build a new value rather
than editing in place. Mutation of live execution state happens through
pkg/execution.TemporaryStore, which owns its own synchronization.

# See Also

  - pkg/block for the DAG and commit data model
  - pkg/execution for the per-transaction workspace that produces Object
    and TransactionEffects values
  - pkg/gas for the GasCostSummary producer
*/
package types
