package types

import (
	"encoding/hex"
	"encoding/json"
)

// ObjectID stably identifies an object across all of its versions.
type ObjectID [32]byte

// String renders the id as hex.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalJSON renders the id as a hex string.
func (id ObjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON parses a hex-encoded id.
func (id *ObjectID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(id[:], b)
	return nil
}

// Version is a per-object, monotonically increasing sequence number.
type Version uint64

// ObjectDigest is the content hash of a single object version.
type ObjectDigest [32]byte

// Sentinel digests stamped onto effects entries that do not correspond to
// live content, per the temporary store's to_effects partition rule.
var (
	ObjectDigestDeleted = ObjectDigest{0xff}
	ObjectDigestWrapped = ObjectDigest{0xfe}
)

// String renders the digest as hex.
func (d ObjectDigest) String() string {
	return hex.EncodeToString(d[:])
}

// OwnerKind discriminates the Owner sum type.
type OwnerKind int

const (
	OwnerAddress OwnerKind = iota
	OwnerObject
	OwnerShared
	OwnerImmutable
)

// Owner is the sum type over an object's custody: an address, a parent
// object (object-owned / "dynamic field"-style), a shared object carrying
// its stable initial version, or immutable (no owner, never mutated).
type Owner struct {
	Kind                 OwnerKind
	Address              [32]byte
	Parent               ObjectID
	InitialSharedVersion Version
}

// AddressOwner builds an address-owned Owner.
func AddressOwner(addr [32]byte) Owner {
	return Owner{Kind: OwnerAddress, Address: addr}
}

// ObjectOwner builds an object-owned Owner.
func ObjectOwner(parent ObjectID) Owner {
	return Owner{Kind: OwnerObject, Parent: parent}
}

// SharedOwner builds a shared Owner with its stable initial version.
func SharedOwner(initialVersion Version) Owner {
	return Owner{Kind: OwnerShared, InitialSharedVersion: initialVersion}
}

// ImmutableOwner builds the Immutable Owner.
func ImmutableOwner() Owner {
	return Owner{Kind: OwnerImmutable}
}

// IsImmutable reports whether o forbids mutation and deletion.
func (o Owner) IsImmutable() bool {
	return o.Kind == OwnerImmutable
}

// Object is an addressable unit of execution state.
type Object struct {
	ID             ObjectID
	Version        Version
	Digest         ObjectDigest
	Owner          Owner
	Type           string
	StorageRebate  uint64
	Contents       []byte
	PreviousTxHash [32]byte
}

// ObjectRef identifies one version of an object by id, version, and digest.
type ObjectRef struct {
	ID      ObjectID
	Version Version
	Digest  ObjectDigest
}

// Ref returns the ObjectRef for o's current version.
func (o *Object) Ref() ObjectRef {
	return ObjectRef{ID: o.ID, Version: o.Version, Digest: o.Digest}
}

// IsGasCoin reports whether o carries the well-known gas coin type tag.
// Real coin-type discrimination belongs to the Move runtime; the execution
// layer only needs to distinguish "this object pays gas" from everything
// else, so a type-tag string comparison is sufficient here.
func (o *Object) IsGasCoin() bool {
	return o.Type == GasCoinType
}

// GasCoinType is the well-known type tag execution uses to recognize a gas
// payment object.
const GasCoinType = "0x2::coin::Coin<0x2::sui::SUI>"

// TransactionDigest identifies a transaction.
type TransactionDigest [32]byte

// String renders the digest as hex.
func (d TransactionDigest) String() string {
	return hex.EncodeToString(d[:])
}

// DeleteKind distinguishes why an object left the live set, matching the
// temporary store's pending-delete bookkeeping and the effects partition
// rule (deleted vs wrapped).
type DeleteKind int

const (
	DeleteNormal DeleteKind = iota
	DeleteUnwrapThenDelete
	DeleteWrap
)

// ExecutionStatus is a transaction's pass/fail outcome.
type ExecutionStatus struct {
	Success bool
	// Error is empty on success; otherwise the failure category, such as
	// cerrors.ErrOutOfGas's message "out of gas".
	Error string
	// AbortCode is set when Error == "move_abort".
	AbortCode *uint64
}

// OK is the canonical success status.
func OK() ExecutionStatus { return ExecutionStatus{Success: true} }

// Failure builds a failure status carrying the given error category.
func Failure(errKind string) ExecutionStatus {
	return ExecutionStatus{Success: false, Error: errKind}
}

// GasCostSummary is the finalized per-transaction gas accounting, produced
// by pkg/gas.Charger.Finalize.
type GasCostSummary struct {
	ComputationCost         uint64
	StorageCost             uint64
	StorageRebate           uint64
	NonRefundableStorageFee uint64
}

// NetGasUsed is the amount deducted from the logical gas coin's balance:
// computation + storage_cost - storage_rebate.
func (g GasCostSummary) NetGasUsed() int64 {
	return int64(g.ComputationCost) + int64(g.StorageCost) - int64(g.StorageRebate)
}

// Event is one entry in a transaction's ordered event log.
type Event struct {
	Type ObjectID
	BCS  []byte
}

// TransactionEffects is the canonical, versioned per-transaction result.
// Field order here mirrors the normative serialization order from the
// external-interfaces contract: status, gas, shared input refs, then each
// object-delta bucket in created/mutated/unwrapped/deleted/wrapped order,
// then events, then dependencies. Reordering or omitting a field breaks
// digest compatibility for any caller that canonically serializes this
// struct.
type TransactionEffects struct {
	Version int // effects format version tag; readers reject unknown versions

	TransactionDigest TransactionDigest
	Status            ExecutionStatus
	GasUsed           GasCostSummary

	SharedObjects []ObjectRef

	Created   []ObjectRefWithOwner
	Mutated   []ObjectRefWithOwner
	Unwrapped []ObjectRefWithOwner
	Deleted   []ObjectRef
	Wrapped   []ObjectRef

	Events       []Event
	Dependencies []TransactionDigest
}

// ObjectRefWithOwner pairs an object version with the owner it was left
// in, for the created/mutated/unwrapped effects buckets.
type ObjectRefWithOwner struct {
	Ref   ObjectRef
	Owner Owner
}

// CurrentEffectsVersion is the only normative effects format this
// implementation produces; unknown versions must be rejected by readers.
const CurrentEffectsVersion = 1

// MovePackage is an opaque, read-only bytecode package. Full Move VM
// semantics are out of scope; the execution layer only needs enough of a
// package to satisfy pkg/storage.ObjectStore.GetPackage.
type MovePackage struct {
	ID      ObjectID
	Modules map[string][]byte
}

// ReceivedMarker records that an object was observed at a given version
// within an epoch, consulted by pkg/objectcache.HaveReceivedObjectAtVersion.
type ReceivedMarker struct {
	ObjectID ObjectID
	Version  Version
	Epoch    uint64
}
