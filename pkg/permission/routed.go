package permission

import "context"

// Routed sends each capability to the authority registered for it and
// everything else to Default.
type Routed struct {
	Default Authority
	Routes  map[Capability]Authority
}

func (r *Routed) pick(c Capability) Authority {
	if a, ok := r.Routes[c]; ok {
		return a
	}
	return r.Default
}

// Granted asks the authority responsible for c.
func (r *Routed) Granted(ctx context.Context, c Capability) (bool, error) {
	return r.pick(c).Granted(ctx, c)
}

// Grant asks the authority responsible for c.
func (r *Routed) Grant(ctx context.Context, c Capability) error {
	return r.pick(c).Grant(ctx, c)
}
