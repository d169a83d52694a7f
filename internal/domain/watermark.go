package domain

// Watermark records the highest block already fully projected for one
// event source. It is the only mutable cursor driving replay avoidance
// and is advanced only after a batch is fully and successfully
// projected. LastBlock never decreases except via administrative resync.
type Watermark struct {
	Source    string // e.g. "LaunchFactory", "BondingCurve_<addr>"
	LastBlock uint64
	SyncedAt  int64 // unix ms
}
