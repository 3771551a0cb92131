package strategy

import (
	"github.com/pkg/errors"

	"github.com/distml/traincoord/collective"
	"github.com/distml/traincoord/train"
)

// New looks up a backend by its configured name. A nil world selects the
// single-process path regardless of name, which keeps world-size-1 runs
// free of collective plumbing.
func New(name string, world collective.World, reducer collective.Reducer) (train.Strategy, error) {
	if world == nil || world.Size() <= 1 {
		switch name {
		case "", "single", "none", "replicated":
			return NewSingle(), nil
		}
	}
	switch name {
	case "", "single", "none":
		return NewSingle(), nil
	case "replicated":
		if reducer == nil {
			reducer = collective.TreeReducer{}
		}
		return NewReplicated(world, reducer), nil
	case "sharded", "pipeline":
		return nil, errors.Errorf("strategy %q is not supported by this build", name)
	default:
		return nil, errors.Errorf("unknown strategy %q", name)
	}
}
