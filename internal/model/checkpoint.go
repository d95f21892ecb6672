package model

// Checkpoint is the (block, log index) position of the last applied log.
type Checkpoint struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
}

// CheckpointOf returns the position recorded by an event log row.
func CheckpointOf(record EventLogRecord) Checkpoint {
	return Checkpoint{BlockNumber: record.BlockNumber, LogIndex: record.LogIndex}
}

// Covers reports whether a log at (blockNumber, logIndex) was already applied.
// Only the checkpoint block is inspected: fetches start at that block, so
// earlier blocks never reach the caller.
func (c Checkpoint) Covers(blockNumber, logIndex uint64) bool {
	return blockNumber == c.BlockNumber && logIndex <= c.LogIndex
}
