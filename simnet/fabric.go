package simnet

// A Fabric is a switching algorithm that decides how fast data flows
// between each pair of hosts, including how oversubscription is resolved.
type Fabric interface {
	// SwitchedRates applies the switching algorithm in place.
	//
	// The mat argument arrives with a 1 wherever a host wants to send to
	// another host and 0 elsewhere. On return, mat holds the granted
	// transfer rate for every pair.
	SwitchedRates(mat *RateMatrix)
}

// A FairShareFabric emulates a switch where a host's outgoing bandwidth is
// spread evenly across its destinations, and incoming traffic is dropped
// uniformly when a host is oversubscribed.
//
// Equivalent to normalizing the rows of a rate matrix, then the columns.
type FairShareFabric struct {
	SendRates []float64
	RecvRates []float64
}

// NewFairShareFabric creates a FairShareFabric with uniform upload and
// download rates across all hosts.
func NewFairShareFabric(numHosts int, rate float64) *FairShareFabric {
	rates := make([]float64, numHosts)
	for i := range rates {
		rates[i] = rate
	}
	return &FairShareFabric{
		SendRates: rates,
		RecvRates: rates,
	}
}

// NumHosts gets the number of hosts the fabric expects.
func (f *FairShareFabric) NumHosts() int {
	return len(f.SendRates)
}

// SwitchedRates performs the switching algorithm.
func (f *FairShareFabric) SwitchedRates(mat *RateMatrix) {
	if mat.NumHosts() != f.NumHosts() {
		panic("unexpected number of hosts")
	}

	// Split upload traffic evenly across destinations.
	for src := 0; src < f.NumHosts(); src++ {
		numDests := mat.SumSource(src)
		if numDests > 0 {
			mat.ScaleSource(src, f.SendRates[src]/numDests)
		}
	}

	// Drop download traffic in proportion to each source's share.
	for dst := 0; dst < f.NumHosts(); dst++ {
		incomingRate := mat.SumDest(dst)
		if incomingRate > f.RecvRates[dst] {
			mat.ScaleDest(dst, f.RecvRates[dst]/incomingRate)
		}
	}
}
