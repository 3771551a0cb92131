package collective

// A StreamReducer splits a vector into chunks and streams them through the
// ranks in a ring, so every link carries traffic at once.
//
// The reduction has two phases. During Reduce, chunks flow around the ring
// and arrive fully reduced at rank 0. During Broadcast, the reduced vector
// streams from rank 0 back through every other rank.
type StreamReducer struct {
	// Granularity determines how many chunks the data is split into.
	// The actual number of chunks is multiplied by the group size.
	//
	// If Granularity is 0, it is treated as 1.
	Granularity int
}

const (
	kindReduce uint8 = iota + 1
	kindReduceAck
	kindBcast
	kindBcastAck
)

// Allreduce calls fn on chunks of data at a time and returns the vector
// resulting from the final reduction.
func (s StreamReducer) Allreduce(w World, data []float64, fn ReduceFn) []float64 {
	w.Begin()
	if len(data) == 0 || w.Size() == 1 {
		return data
	}
	if w.Rank() == 0 {
		return s.allreduceRoot(w, data)
	}
	return s.allreduceOther(w, data, fn)
}

func (s StreamReducer) allreduceRoot(w World, data []float64) []float64 {
	chunksOut := s.chunkify(w, data)
	reduced := make([]float64, 0, len(data))

	// Kick off the reduction cycle.
	sendRing(w, Packet{Kind: kindReduce, Vec: chunksOut[0]})
	chunksOut = chunksOut[1:]

	// Push the reduction through the ring.
	waitingReduceAck := true
	for len(reduced) < len(data) {
		pkt, _ := w.Recv()
		switch pkt.Kind {
		case kindReduce:
			reduced = append(reduced, pkt.Vec...)
			sendRing(w, Packet{Kind: kindReduceAck})
		case kindReduceAck:
			if !waitingReduceAck {
				panic("unexpected ACK")
			}
			if len(chunksOut) > 0 {
				sendRing(w, Packet{Kind: kindReduce, Vec: chunksOut[0]})
				chunksOut = chunksOut[1:]
			} else {
				waitingReduceAck = false
			}
		default:
			panic("unexpected packet kind")
		}
	}

	if len(chunksOut) > 0 {
		panic("unexpected reduction completion")
	} else if len(reduced) != len(data) {
		panic("excess data")
	}

	// Push the data through the bcast cycle.
	for _, chunk := range s.chunkify(w, reduced) {
		sendRing(w, Packet{Kind: kindBcast, Vec: chunk})
		for {
			pkt, _ := w.Recv()
			if pkt.Kind == kindReduceAck {
				if !waitingReduceAck {
					panic("unexpected ACK")
				}
				waitingReduceAck = false
			} else if pkt.Kind == kindBcastAck {
				break
			} else {
				panic("unexpected packet kind")
			}
		}
	}

	return reduced
}

func (s StreamReducer) allreduceOther(w World, data []float64, fn ReduceFn) []float64 {
	var reduced []float64

	isLastRank := w.Rank()+1 == w.Size()

	// Reduce our data into the stream.
	var reduceBlocked bool
	var reduceBuf []Packet
	remainingData := data
	for len(reduced) == 0 {
		pkt, _ := w.Recv()
		switch pkt.Kind {
		case kindReduce:
			sendRing(w, Packet{Kind: kindReduceAck})
			chunk := fn(pkt.Vec, remainingData[:len(pkt.Vec)])
			w.Work(2 * len(chunk))
			remainingData = remainingData[len(pkt.Vec):]
			reduceBuf = append(reduceBuf, Packet{Kind: kindReduce, Vec: chunk})
		case kindReduceAck:
			if !reduceBlocked {
				panic("unexpected ACK")
			}
			reduceBlocked = false
		case kindBcast:
			if len(reduceBuf) > 0 {
				panic("got bcast before reduce finished")
			}
			reduced = append(reduced, pkt.Vec...)
			sendRing(w, Packet{Kind: kindBcastAck})
			if !isLastRank {
				// Otherwise, the chunk would never reach the next rank
				// in the ring.
				sendRing(w, pkt)
			}
		default:
			panic("unexpected packet kind")
		}
		if !reduceBlocked && len(reduceBuf) > 0 {
			sendRing(w, reduceBuf[0])
			reduceBuf = reduceBuf[1:]
			reduceBlocked = true
		}
	}

	// Read the broadcasted reduction.
	bcastBlocked := true
	var bcastBuf []Packet
	for len(reduced) < len(data) || len(bcastBuf) > 0 {
		pkt, _ := w.Recv()
		switch pkt.Kind {
		case kindReduceAck:
			if !reduceBlocked {
				panic("unexpected ACK")
			}
			reduceBlocked = false
		case kindBcast:
			reduced = append(reduced, pkt.Vec...)
			sendRing(w, Packet{Kind: kindBcastAck})
			if !isLastRank {
				bcastBuf = append(bcastBuf, Packet{Kind: kindBcast, Vec: pkt.Vec})
			}
		case kindBcastAck:
			if !bcastBlocked {
				panic("unexpected ACK")
			}
			bcastBlocked = false
		default:
			panic("unexpected packet kind")
		}
		if !bcastBlocked && len(bcastBuf) > 0 {
			sendRing(w, bcastBuf[0])
			bcastBuf = bcastBuf[1:]
			bcastBlocked = true
		}
	}

	if reduceBlocked {
		panic("missed expected ACK")
	}

	return reduced
}

func (s StreamReducer) chunkify(w World, data []float64) [][]float64 {
	granularity := s.Granularity
	if granularity == 0 {
		granularity = 1
	}
	chunkSize := len(data) / (w.Size() * granularity)
	if chunkSize < 1 {
		chunkSize = 1
	}
	var res [][]float64
	for i := 0; i < len(data); i += chunkSize {
		if i+chunkSize > len(data) {
			res = append(res, data[i:])
		} else {
			res = append(res, data[i:i+chunkSize])
		}
	}
	return res
}

// sendRing routes a packet along the ring: ACKs go to the previous rank,
// data packets to the next.
func sendRing(w World, p Packet) {
	var dst int
	if p.Kind == kindReduceAck || p.Kind == kindBcastAck {
		dst = w.Rank() - 1
		if dst < 0 {
			dst = w.Size() - 1
		}
	} else {
		dst = (w.Rank() + 1) % w.Size()
	}
	w.Send(dst, p)
}
