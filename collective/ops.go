package collective

// Mean gathers a scalar from every rank and returns the arithmetic mean.
//
// Every rank in the world must call Mean at the same call site the same
// number of times; a subset of ranks calling it deadlocks the group. The
// training loop keeps its single call site for this reason.
func Mean(w World, r Reducer, value float64) float64 {
	out := r.Allreduce(w, []float64{value}, Sum)
	return out[0] / float64(w.Size())
}

// MeanVector reduces a vector across ranks element-wise and scales by the
// group size, leaving every rank with the averaged vector. Used for
// gradient averaging in replicated training.
func MeanVector(w World, r Reducer, vec []float64) []float64 {
	out := r.Allreduce(w, vec, Sum)
	scale := 1 / float64(w.Size())
	res := make([]float64, len(out))
	for i, x := range out {
		res[i] = x * scale
	}
	return res
}

// AllGather collects every rank's vector, ordered by rank.
func AllGather(w World, vec []float64) [][]float64 {
	w.Begin()
	for i := 0; i < w.Size(); i++ {
		if i == w.Rank() {
			continue
		}
		w.Send(i, Packet{Vec: vec})
	}
	out := make([][]float64, w.Size())
	out[w.Rank()] = vec
	for i := 0; i < w.Size()-1; i++ {
		pkt, src := w.Recv()
		out[src] = pkt.Vec
	}
	return out
}

// Barrier blocks until every rank has reached it. A rank only returns
// after hearing from all the others, so no rank can leave before the last
// one arrives.
func Barrier(w World) {
	w.Begin()
	for i := 0; i < w.Size(); i++ {
		if i == w.Rank() {
			continue
		}
		w.Send(i, Packet{})
	}
	for i := 0; i < w.Size()-1; i++ {
		w.Recv()
	}
}
