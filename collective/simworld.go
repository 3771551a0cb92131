package collective

import "github.com/distml/traincoord/simnet"

// A SimWorld is a rank's view of a simulated worker group on a simnet
// network. It models message sizes and reduction compute cost in virtual
// time, which makes it the backend for collective tests and the reduction
// benchmark.
type SimWorld struct {
	handle  *simnet.Handle
	port    *simnet.Port
	ports   []*simnet.Port
	network simnet.Network
	rank    int
	inbox   opInbox
}

// SpawnSim creates a SimWorld for every host on a network and calls f for
// each rank in its own goroutine. The caller runs the loop afterwards.
func SpawnSim(loop *simnet.Loop, network simnet.Network, hosts []*simnet.Host,
	f func(w World)) {
	ports := make([]*simnet.Port, len(hosts))
	for i, host := range hosts {
		ports[i] = host.Port(loop)
	}
	for i := range hosts {
		rank := i
		loop.Go(func(h *simnet.Handle) {
			f(&SimWorld{
				handle:  h,
				port:    ports[rank],
				ports:   ports,
				network: network,
				rank:    rank,
			})
		})
	}
}

func (s *SimWorld) Rank() int { return s.rank }

func (s *SimWorld) Size() int { return len(s.ports) }

func (s *SimWorld) Begin() { s.inbox.begin() }

func (s *SimWorld) Send(dst int, p Packet) {
	s.network.Send(s.handle, &simnet.Message{
		Source:  s.port,
		Dest:    s.ports[dst],
		Message: &envelope{op: s.inbox.op, src: s.rank, pkt: p},
		Size:    float64(len(p.Vec)*8) + 1.0,
	})
}

func (s *SimWorld) Recv() (Packet, int) {
	if env, ok := s.inbox.take(); ok {
		return env.pkt, env.src
	}
	for {
		msg := s.port.Recv(s.handle)
		if env, ok := s.inbox.accept(*msg.Message.(*envelope)); ok {
			return env.pkt, env.src
		}
	}
}

// Work sleeps for the virtual time the given number of floating-point
// operations would take.
func (s *SimWorld) Work(flops int) {
	s.handle.Sleep(FlopTime * float64(flops))
}
