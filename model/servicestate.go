package model

// DatabaseVersion is the schema version this build of the observer expects.
// ServiceState.DatabaseVersion is compared against this at startup; a
// stored version newer than this is a fatal downgrade attempt, and an older
// one triggers a wipe-and-resync upgrade path.
const DatabaseVersion = "1.1.0"

// ServiceState is the single-document store of durable, cross-restart
// service state that isn't naturally keyed by block height or transaction
// number.
type ServiceState struct {
	DatabaseVersion string `bson:"databaseVersion" json:"databaseVersion"`

	// ApproximateTime caches the last observed chain tip height, purely
	// as an optimization hint for cold-start planning; it is never
	// treated as authoritative over BlockMetadataStore.GetLast.
	ApproximateTime uint64 `bson:"approximateTime" json:"approximateTime"`
}

// QuantileGroup is the sliding-window quantile calculator's persisted unit:
// one fee-frequency histogram per groupSizeInBlocks-sized range of heights.
type QuantileGroup struct {
	GroupID uint64 `bson:"groupId" json:"groupId"`

	// Quantile is the fee-bucket lower bound at the configured quantile,
	// computed over the merged window as of when this group was added.
	Quantile uint64 `bson:"quantile" json:"quantile"`

	// FrequencyVector is this group's own histogram (not the running
	// merged one), indexed by fee bucket. Kept so the group can be
	// subtracted back out of the merged vector when it is evicted.
	FrequencyVector []uint64 `bson:"frequencyVector" json:"frequencyVector"`
}
