package tdm

// SlotClaim is a grant of slots on one port to one adapter.
type SlotClaim struct {
	Port      int
	AdapterID string
	Slots     SlotMask
	Shared    bool
}

// Arbiter grants slot claims on a port first come, first served. Claims never
// move once granted. Its state is guarded by the port's mutex.
type Arbiter struct {
	port   *Port
	claims []SlotClaim
}

// Claim grants slots to adapterID. Claims must fall inside the committed mask
// and may only overlap when both sides are shared.
func (a *Arbiter) Claim(adapterID string, slots SlotMask, shared bool) (SlotClaim, error) {
	p := a.port

	p.mu.Lock()
	defer p.mu.Unlock()

	switch s := p.State(); s {
	case StateConfigured, StateStopped:
	default:
		return SlotClaim{}, configErr(KindInvalidState, p.index, "cannot claim slots in state %s", s)
	}

	if slots == 0 {
		return SlotClaim{}, configErr(KindSlotOverflow, p.index, "adapter %q requested no slots", adapterID)
	}

	if !p.mask.Contains(slots) {
		return SlotClaim{}, configErr(KindSlotOverflow, p.index, "slots %s outside committed mask %s", slots&^p.mask, p.mask)
	}

	for _, c := range a.claims {
		if c.AdapterID == adapterID {
			return SlotClaim{}, configErr(KindSlotConflict, p.index, "adapter %q already holds %s", adapterID, c.Slots)
		}

		if c.Slots.Overlaps(slots) && !(c.Shared && shared) {
			return SlotClaim{}, configErr(KindSlotConflict, p.index, "slots %s held by %q", c.Slots&slots, c.AdapterID)
		}
	}

	claim := SlotClaim{Port: p.index, AdapterID: adapterID, Slots: slots, Shared: shared}
	a.claims = append(a.claims, claim)

	logDebug(ComponentArbiter, "slots claimed", "port", p.index, "adapter", adapterID, "slots", slots, "shared", shared)

	return claim, nil
}

// Release frees a claim. Claims cannot be released while the port is running.
func (a *Arbiter) Release(claim SlotClaim) error {
	p := a.port

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateRunning {
		return configErr(KindInvalidState, p.index, "cannot release slots while running")
	}

	for i, c := range a.claims {
		if c == claim {
			a.claims = append(a.claims[:i], a.claims[i+1:]...)

			logDebug(ComponentArbiter, "slots released", "port", p.index, "adapter", claim.AdapterID, "slots", claim.Slots)

			return nil
		}
	}

	return configErr(KindInvalidState, p.index, "adapter %q holds no claim on %s", claim.AdapterID, claim.Slots)
}

// Claims returns a copy of the active claims in grant order.
func (a *Arbiter) Claims() []SlotClaim {
	a.port.mu.Lock()
	defer a.port.mu.Unlock()

	return append([]SlotClaim(nil), a.claims...)
}

// claimed returns the union of claimed slots. The port mutex must be held.
func (a *Arbiter) claimed() SlotMask {
	var m SlotMask
	for _, c := range a.claims {
		m |= c.Slots
	}

	return m
}
