package collective

// FlopTime is the virtual time one floating-point operation takes on
// simulated worlds.
const FlopTime = 1e-9

// A ReduceFn combines many vectors into one.
type ReduceFn func(vecs ...[]float64) []float64

// Sum is a ReduceFn that computes an element-wise vector sum.
func Sum(vecs ...[]float64) []float64 {
	for _, v := range vecs[1:] {
		if len(v) != len(vecs[0]) {
			panic("mismatching lengths")
		}
	}
	res := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i, x := range v {
			res[i] += x
		}
	}
	return res
}

// A Reducer applies a ReduceFn to vectors distributed across the ranks of
// a World, leaving every rank with the identical reduced vector.
type Reducer interface {
	Allreduce(w World, data []float64, fn ReduceFn) []float64
}
