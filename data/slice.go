package data

// A SliceLoader serves batches from memory. Skipping is a pointer bump,
// so resuming past already-consumed batches costs nothing.
type SliceLoader struct {
	batches []Batch
}

// NewSliceLoader creates a loader over the given batches.
func NewSliceLoader(batches []Batch) *SliceLoader {
	return &SliceLoader{batches: batches}
}

// Len returns the number of batches per epoch.
func (s *SliceLoader) Len() int {
	return len(s.batches)
}

// Stream starts a fresh iteration.
func (s *SliceLoader) Stream() Stream {
	return &sliceStream{batches: s.batches}
}

type sliceStream struct {
	batches []Batch
	pos     int
}

func (s *sliceStream) Next() (Batch, bool) {
	if s.pos >= len(s.batches) {
		return Batch{}, false
	}
	b := s.batches[s.pos]
	s.pos++
	return b, true
}

func (s *sliceStream) Skip(n int) int {
	remaining := len(s.batches) - s.pos
	if n > remaining {
		n = remaining
	}
	s.pos += n
	return n
}
