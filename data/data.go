// Package data defines the batch-stream abstraction consumed by the
// training loop. Dataset construction and disk I/O stay outside the
// coordinator; this package only fixes the contract and provides an
// in-memory implementation plus a deterministic synthetic dataset.
package data

// A Batch is one unit of training or validation work.
type Batch struct {
	// Index is the batch's position within its epoch.
	Index int

	// Units counts the samples or tokens in the batch, used for
	// throughput accounting.
	Units int

	// Data is the model-specific payload. The coordinator never looks
	// inside it.
	Data interface{}
}

// A Loader produces one finite stream of batches per epoch.
type Loader interface {
	// Len is the number of batches in one epoch.
	Len() int

	// Stream starts a fresh iteration over the epoch.
	Stream() Stream
}

// A Stream iterates the batches of a single epoch.
type Stream interface {
	// Next returns the next batch, or ok=false at the end of the epoch.
	Next() (batch Batch, ok bool)

	// Skip discards up to n leading batches without producing them and
	// returns how many were discarded. Implementations should skip
	// lazily, without paying the cost of materializing the skipped
	// batches, where the underlying source allows it.
	Skip(n int) int
}

// Partition returns the strided share of batches owned by one rank, so
// that every rank of a group iterates a disjoint, identically-sized
// partition. Trailing batches that do not divide evenly are dropped.
func Partition(batches []Batch, rank, size int) []Batch {
	if size <= 1 {
		return batches
	}
	perRank := len(batches) / size
	out := make([]Batch, 0, perRank)
	for i := 0; i < perRank; i++ {
		out = append(out, batches[i*size+rank])
	}
	return out
}
