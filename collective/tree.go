package collective

// A TreeReducer arranges the ranks in a binary tree and reduces up the
// tree to the root, then broadcasts the result back down.
type TreeReducer struct{}

// Allreduce calls fn on vectors along the tree and returns the reduced
// vector on every rank.
func (t TreeReducer) Allreduce(w World, data []float64, fn ReduceFn) []float64 {
	w.Begin()

	parent, children := treePosition(w.Rank(), w.Size())

	vecs := [][]float64{data}
	for range children {
		pkt, _ := w.Recv()
		vecs = append(vecs, pkt.Vec)
	}

	reduced := fn(vecs...)
	w.Work(len(vecs) * len(reduced))

	if parent >= 0 {
		w.Send(parent, Packet{Vec: reduced})
		pkt, _ := w.Recv()
		reduced = pkt.Vec
	}

	for _, child := range children {
		w.Send(child, Packet{Vec: reduced})
	}

	return reduced
}

// treePosition returns the parent rank (-1 for the root) and child ranks
// of a rank in the reduction tree. There may be no children.
func treePosition(rank, size int) (parent int, children []int) {
	parent = -1
	for depth := uint(0); true; depth++ {
		rowSize := 1 << depth
		rowStart := rowSize - 1
		if rank >= rowStart+rowSize {
			continue
		}
		rowIdx := rank - rowStart
		if depth > 0 {
			parent = rowIdx/2 + (rowSize/2 - 1)
		}
		firstChild := rowIdx*2 + (rowSize*2 - 1)
		for i := 0; i < 2; i++ {
			if firstChild+i < size {
				children = append(children, firstChild+i)
			}
		}
		return
	}
	panic("unreachable")
}
