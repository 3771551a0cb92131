// Package collective implements the collective-communication layer used by
// the training loop: a per-rank view of the worker group plus reduction
// algorithms (naive, tree, chunked ring stream) and the high-level
// operations the loop needs (mean, all-gather, barrier).
//
// Every operation is collective: all ranks in a world must call the same
// operations in the same order, or the group deadlocks. There is no
// timeout at this layer; a hung worker hangs the whole group.
package collective

// A Packet is one unit of collective traffic. Kind distinguishes protocol
// messages within a single operation (the ring reducer uses it for its
// ACK flow control); plain data packets leave it zero.
type Packet struct {
	Kind uint8
	Vec  []float64
}

// A World is one rank's view of the worker group.
//
// Consecutive operations on the same World are delimited by Begin, which
// tags outgoing traffic so that a rank running slightly ahead cannot leak
// packets into a peer's previous operation.
type World interface {
	// Rank is this worker's index within the group.
	Rank() int

	// Size is the number of workers in the group.
	Size() int

	// Begin starts a new collective operation. Every rank must call it
	// the same number of times, which holds whenever ranks run the same
	// deterministic control flow.
	Begin()

	// Send delivers a packet to another rank. Non-blocking in practice;
	// implementations buffer generously because collective traffic per
	// operation is bounded.
	Send(dst int, p Packet)

	// Recv blocks for the next packet of the current operation from any
	// rank, returning the packet and the source rank.
	Recv() (Packet, int)

	// Work accounts for local computation of the given number of
	// floating-point operations. Simulated worlds advance virtual time;
	// real worlds treat it as a no-op.
	Work(flops int)
}

// envelope wraps a Packet with routing and operation metadata.
type envelope struct {
	op  int
	src int
	pkt Packet
}

// opInbox matches incoming envelopes against the current operation,
// stashing packets that belong to a future one.
type opInbox struct {
	op    int
	stash []envelope
}

func (o *opInbox) begin() {
	o.op++
}

// take pops a stashed envelope for the current operation, if any.
func (o *opInbox) take() (envelope, bool) {
	for i, env := range o.stash {
		if env.op == o.op {
			o.stash = append(o.stash[:i], o.stash[i+1:]...)
			return env, true
		}
	}
	return envelope{}, false
}

// accept routes a received envelope: packets for the current operation are
// returned, future ones are stashed.
func (o *opInbox) accept(env envelope) (envelope, bool) {
	if env.op == o.op {
		return env, true
	}
	o.stash = append(o.stash, env)
	return envelope{}, false
}
