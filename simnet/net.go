package simnet

import (
	"math"
	"math/rand"
	"sync"
)

// A Host is one simulated worker machine on the network.
type Host struct {
	unused int
}

// NewHost creates a new, unique Host.
func NewHost() *Host {
	return &Host{}
}

// Port creates a new Port attached to the Host.
func (h *Host) Port(loop *Loop) *Port {
	return &Port{Host: h, Incoming: loop.Stream()}
}

// A Port is a point of communication on a Host. Data is sent from Ports
// and received on Ports.
type Port struct {
	// The Host to which the Port is attached.
	Host *Host

	// A stream of *Message objects.
	Incoming *Stream
}

// Recv receives the next message on the port.
func (p *Port) Recv(h *Handle) *Message {
	return h.Poll(p.Incoming).Message.(*Message)
}

// A Message is a chunk of data sent between hosts. Size is in bytes and
// determines how long the transfer takes on bandwidth-modeling networks.
type Message struct {
	Source  *Port
	Dest    *Port
	Message interface{}
	Size    float64
}

// A Network decides when messages sent between hosts arrive.
type Network interface {
	// Send delivers message objects from one host to another. Successful
	// messages arrive on the destination port's incoming Stream.
	//
	// This is a non-blocking operation.
	//
	// Passing multiple messages at once is preferred when possible, since
	// a Network may otherwise re-plan its delivery timeline per message.
	Send(h *Handle, msgs ...*Message)
}

// A JitterNetwork delivers every message after an independent random
// delay, ignoring message sizes. It is the cheapest way to shake out
// ordering assumptions in collective code.
type JitterNetwork struct{}

// Send sends the messages with random delays.
func (j JitterNetwork) Send(h *Handle, msgs ...*Message) {
	for _, msg := range msgs {
		h.Schedule(msg.Dest.Incoming, msg, rand.Float64())
	}
}

// A FabricNetwork passes data through a switching Fabric. Concurrent
// messages along the same edge share bandwidth, so each transfer may slow
// the others down, the way a real training fabric behaves when gradient
// exchange oversubscribes a link.
type FabricNetwork struct {
	lock sync.Mutex

	fabric  Fabric
	hosts   []*Host
	latency float64

	plan fabricPlan
}

// NewFabricNetwork creates a FabricNetwork.
//
// The latency argument adds a constant setup period to every delivery.
// The latency period also counts toward oversubscription, so one message's
// latency may interfere with another's transmission. In practice this can
// roughly double latency-based congestion relative to a real network.
func NewFabricNetwork(fabric Fabric, hosts []*Host, latency float64) *FabricNetwork {
	return &FabricNetwork{
		fabric:  fabric,
		hosts:   hosts,
		latency: latency,
	}
}

// Send sends the messages over the fabric. This may change the arrival
// times of messages that are already in flight.
func (f *FabricNetwork) Send(h *Handle, msgs ...*Message) {
	f.lock.Lock()
	defer f.lock.Unlock()

	state := f.stopPlan(h)
	for _, msg := range msgs {
		state = append(state, &fabricMsg{
			msg:              msg,
			remainingLatency: f.latency,
			remainingSize:    msg.Size,
		})
	}
	f.createPlan(h, state)
}

func (f *FabricNetwork) stopPlan(h *Handle) []*fabricMsg {
	var currentState []*fabricMsg
	for _, segment := range f.plan {
		if h.Time() >= segment.endTime {
			// The timers may have fired already; let this segment go.
			continue
		}
		if h.Time() >= segment.startTime {
			// Interpolate within the current segment.
			elapsed := h.Time() - segment.startTime
			for _, msg := range segment.startState {
				currentState = append(currentState, msg.AddTime(elapsed))
			}
		}
		for _, timer := range segment.timers {
			h.Cancel(timer)
		}
	}
	return currentState
}

func (f *FabricNetwork) computeDataRates(state []*fabricMsg) {
	hostToIndex := map[*Host]int{}
	for i, host := range f.hosts {
		hostToIndex[host] = i
	}

	// Slightly pessimistic: the latency period clogs the sender NIC here,
	// even though a real receiver NIC would still be idle.

	mat := NewRateMatrix(len(f.hosts))
	counts := NewRateMatrix(len(f.hosts))
	for _, msg := range state {
		src, dst := hostToIndex[msg.msg.Source.Host], hostToIndex[msg.msg.Dest.Host]
		mat.Set(src, dst, 1)
		counts.Set(src, dst, counts.Get(src, dst)+1)
	}
	f.fabric.SwitchedRates(mat)
	for _, msg := range state {
		src, dst := hostToIndex[msg.msg.Source.Host], hostToIndex[msg.msg.Dest.Host]
		msg.dataRate = mat.Get(src, dst) / counts.Get(src, dst)
	}
}

func (f *FabricNetwork) createPlan(h *Handle, state []*fabricMsg) {
	f.plan = make(fabricPlan, 0, len(state))
	startTime := h.Time()
	for len(state) > 0 {
		f.computeDataRates(state)

		nextMsgs, newState, lowestETA := messagesWithLowestETA(state)

		timers := make([]*Timer, len(nextMsgs))
		for i, msg := range nextMsgs {
			delay := startTime - h.Time() + lowestETA
			timers[i] = h.Schedule(msg.msg.Dest.Incoming, msg.msg, delay)
		}

		endTime := timers[0].Time()
		f.plan = append(f.plan, &fabricPlanSegment{
			startTime:  startTime,
			endTime:    endTime,
			timers:     timers,
			startState: state,
		})

		for i, msg := range newState {
			newState[i] = msg.AddTime(endTime - startTime)
		}
		state = newState
		startTime = endTime
	}
}

// fabricMsg tracks the transfer state of one in-flight message.
type fabricMsg struct {
	msg *Message

	remainingLatency float64

	remainingSize float64
	dataRate      float64
}

// ETA gets the time until the message finishes transferring.
func (f *fabricMsg) ETA() float64 {
	return math.Max(0, f.remainingLatency+f.remainingSize/f.dataRate)
}

// AddTime returns the message's state after t time units elapse.
func (f *fabricMsg) AddTime(t float64) *fabricMsg {
	res := *f

	if t < res.remainingLatency {
		res.remainingLatency -= t
		return &res
	}

	t -= res.remainingLatency
	res.remainingLatency = 0
	res.remainingSize -= res.dataRate * t

	return &res
}

// fabricPlanSegment is a period during which transfer rates are constant.
// Each segment ends with at least one Timer delivering a message.
type fabricPlanSegment struct {
	startTime float64
	endTime   float64
	timers    []*Timer

	startState []*fabricMsg
}

// fabricPlan is the sequence of segments that, together, deliver every
// message currently on the network.
type fabricPlan []*fabricPlanSegment

func messagesWithLowestETA(msgs []*fabricMsg) (lowest, rest []*fabricMsg, lowestETA float64) {
	etas := make([]float64, len(msgs))
	for i, msg := range msgs {
		etas[i] = msg.ETA()
	}
	lowestETA = etas[0]
	for _, eta := range etas {
		if eta < lowestETA {
			lowestETA = eta
		}
	}

	lowest = make([]*fabricMsg, 0, 1)
	rest = make([]*fabricMsg, 0, len(msgs)-1)

	for i, msg := range msgs {
		if etas[i] == lowestETA {
			lowest = append(lowest, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	return lowest, rest, lowestETA
}
