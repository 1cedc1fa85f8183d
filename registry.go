// Package tdm runs multi-slot serial audio ports on top of a DMA driver.
// Ports are checked against the capabilities of a hardware variant before
// stream adapters claim their slots.
package tdm

import (
	"errors"
	"fmt"
	"sync"
)

// Registry owns the ports of one hardware variant. Ports are created on first
// use and live as long as the registry; adapters only borrow them.
type Registry struct {
	capability Capability
	driver     Driver

	mu    sync.Mutex
	ports []*Port
}

// NewRegistry creates the port registry for a variant. Variants that are
// unknown or lack TDM support are rejected.
func NewRegistry(v Variant, driver Driver) (*Registry, error) {
	c, ok := LookupCapability(v)
	if !ok {
		return nil, &ConfigError{Kind: KindUnsupportedVariant, Port: -1, Err: fmt.Errorf("variant %q", v)}
	}

	if !c.TDMSupported {
		return nil, &ConfigError{Kind: KindUnsupportedVariant, Port: -1, Err: fmt.Errorf("variant %q has no TDM support", v)}
	}

	if driver == nil {
		return nil, fmt.Errorf("nil driver")
	}

	logDebug(ComponentRegistry, "registry created", "variant", v, "ports", c.MaxPorts, "tdm", c.TDMSupported)

	return &Registry{
		capability: c,
		driver:     driver,
		ports:      make([]*Port, c.MaxPorts),
	}, nil
}

// Capability returns the variant's capability entry.
func (r *Registry) Capability() Capability {
	return r.capability
}

// Port returns the port with the given index, creating it uninitialized on first use.
// Indices stop at the variant's port count, which caps the configured ports.
func (r *Registry) Port(index int) (*Port, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.ports) {
		return nil, configErr(KindPortLimitExceeded, index, "%s has ports 0..%d", r.capability.Variant, len(r.ports)-1)
	}

	if r.ports[index] == nil {
		r.ports[index] = newPort(r, index)
	}

	return r.ports[index], nil
}

// Ports returns the ports created so far in index order.
func (r *Registry) Ports() []*Port {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Port, 0, len(r.ports))
	for _, p := range r.ports {
		if p != nil {
			out = append(out, p)
		}
	}

	return out
}

// StopAll stops every running port.
func (r *Registry) StopAll() error {
	var errs []error
	for _, p := range r.Ports() {
		if err := p.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close stops all ports, unbinds their adapters and resets them.
// Adapters are torn down before the ports they borrow.
func (r *Registry) Close() error {
	errs := []error{r.StopAll()}

	for _, p := range r.Ports() {
		p.mu.Lock()
		deps := append([]endpoint(nil), p.dependents...)
		p.mu.Unlock()

		for _, d := range deps {
			errs = append(errs, d.stream().Unbind())
		}

		if p.State() != StateUninitialized {
			errs = append(errs, p.Reset())
		}
	}

	return errors.Join(errs...)
}
