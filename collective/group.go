package collective

// A Group is a set of in-process worker ranks connected by buffered
// channels. It is the transport used for real (non-simulated) multi-rank
// runs, where each rank executes the training loop in its own goroutine.
type Group struct {
	inboxes []chan envelope
	worlds  []World
}

// NewGroup creates a channel-mesh group of size ranks and returns one
// World per rank. Each World must be used by exactly one goroutine.
func NewGroup(size int) *Group {
	if size < 1 {
		panic("group size must be positive")
	}
	g := &Group{inboxes: make([]chan envelope, size)}
	for i := range g.inboxes {
		// A rank can run at most one collective operation ahead of its
		// peers, so per-operation traffic bounds the backlog.
		g.inboxes[i] = make(chan envelope, 8*size+32)
	}
	g.worlds = make([]World, size)
	for i := range g.worlds {
		g.worlds[i] = &chanWorld{rank: i, group: g}
	}
	return g
}

// Worlds returns the per-rank worlds, indexed by rank.
func (g *Group) Worlds() []World {
	return g.worlds
}

type chanWorld struct {
	rank  int
	group *Group
	inbox opInbox
}

func (c *chanWorld) Rank() int { return c.rank }

func (c *chanWorld) Size() int { return len(c.group.inboxes) }

func (c *chanWorld) Begin() { c.inbox.begin() }

func (c *chanWorld) Send(dst int, p Packet) {
	c.group.inboxes[dst] <- envelope{op: c.inbox.op, src: c.rank, pkt: p}
}

func (c *chanWorld) Recv() (Packet, int) {
	if env, ok := c.inbox.take(); ok {
		return env.pkt, env.src
	}
	for {
		env := <-c.group.inboxes[c.rank]
		if env, ok := c.inbox.accept(env); ok {
			return env.pkt, env.src
		}
	}
}

func (c *chanWorld) Work(flops int) {}
