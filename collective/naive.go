package collective

// A NaiveReducer sends every rank's vector to every other rank and reduces
// locally. Quadratic traffic, but unbeatable for tiny payloads like the
// per-step scalar loss.
type NaiveReducer struct{}

// Allreduce runs fn over all ranks' vectors on every rank.
func (n NaiveReducer) Allreduce(w World, data []float64, fn ReduceFn) []float64 {
	w.Begin()

	for i := 0; i < w.Size(); i++ {
		if i == w.Rank() {
			continue
		}
		w.Send(i, Packet{Vec: data})
	}

	gathered := make([][]float64, w.Size())
	gathered[w.Rank()] = data
	for i := 0; i < w.Size()-1; i++ {
		pkt, src := w.Recv()
		gathered[src] = pkt.Vec
	}

	res := fn(gathered...)
	w.Work(len(gathered) * len(res))
	return res
}
