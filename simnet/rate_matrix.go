package simnet

// A RateMatrix stores a transfer rate from every source host (row) to
// every destination host (column).
type RateMatrix struct {
	numHosts int
	rates    []float64
}

// NewRateMatrix creates an all-zero rate matrix.
func NewRateMatrix(numHosts int) *RateMatrix {
	return &RateMatrix{
		numHosts: numHosts,
		rates:    make([]float64, numHosts*numHosts),
	}
}

// NumHosts returns the number of hosts.
func (r *RateMatrix) NumHosts() int {
	return r.numHosts
}

// Get an entry in the matrix.
func (r *RateMatrix) Get(src, dst int) float64 {
	if src < 0 || dst < 0 || src >= r.numHosts || dst >= r.numHosts {
		panic("index out of bounds")
	}
	return r.rates[src*r.numHosts+dst]
}

// Set an entry in the matrix.
func (r *RateMatrix) Set(src, dst int, value float64) {
	if src < 0 || dst < 0 || src >= r.numHosts || dst >= r.numHosts {
		panic("index out of bounds")
	}
	r.rates[src*r.numHosts+dst] = value
}

// SumDest sums a column of the matrix.
func (r *RateMatrix) SumDest(dst int) float64 {
	if dst < 0 || dst >= r.numHosts {
		panic("index out of bounds")
	}
	var sum float64
	for i := 0; i < r.numHosts; i++ {
		sum += r.Get(i, dst)
	}
	return sum
}

// SumSource sums a row of the matrix.
func (r *RateMatrix) SumSource(src int) float64 {
	if src < 0 || src >= r.numHosts {
		panic("index out of bounds")
	}
	var sum float64
	for i := 0; i < r.numHosts; i++ {
		sum += r.Get(src, i)
	}
	return sum
}

// ScaleDest scales a column of the matrix.
func (r *RateMatrix) ScaleDest(dst int, scale float64) {
	if dst < 0 || dst >= r.numHosts {
		panic("index out of bounds")
	}
	for i := 0; i < r.numHosts; i++ {
		r.Set(i, dst, r.Get(i, dst)*scale)
	}
}

// ScaleSource scales a row of the matrix.
func (r *RateMatrix) ScaleSource(src int, scale float64) {
	if src < 0 || src >= r.numHosts {
		panic("index out of bounds")
	}
	for i := 0; i < r.numHosts; i++ {
		r.Set(src, i, r.Get(src, i)*scale)
	}
}
