package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(base_seed|start_year|horizon_months|paths_run|replay_mode)
// Returns the base58-encoded hash.
func ComputeRunID(
	baseSeed int64,
	startYear int,
	horizonMonths int,
	pathsRun int,
	replayMode bool,
) string {
	data := fmt.Sprintf("%d|%d|%d|%d|%t",
		baseSeed,
		startYear,
		horizonMonths,
		pathsRun,
		replayMode,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
