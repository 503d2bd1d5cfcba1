package correlation

import (
	"encoding/json"
	"fmt"
	"time"
)

// snapshotState is the serialized form of the group counters. Group
// definitions and limits come from configuration, not the snapshot, so a
// restore under a newer policy table picks up the new limits.
type snapshotState struct {
	Version    int64                        `json:"version"`
	UpdatedAt  string                       `json:"updated_at"`
	Groups     map[string]map[string]string `json:"groups"`    // group -> position ID -> symbol
	Unmapped   map[string]string            `json:"unmapped"`  // position ID -> symbol (policy-gap admissions)
	PolicyGaps map[string]int               `json:"policy_gaps"`
}

// Snapshot serializes the controller's counters. Restoring the bytes into a
// controller built from the same configuration reproduces identical CanAdmit
// outcomes.
func (c *Controller) Snapshot() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := snapshotState{
		Version:    time.Now().UnixNano(),
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
		Groups:     map[string]map[string]string{},
		Unmapped:   map[string]string{},
		PolicyGaps: map[string]int{},
	}
	for name, g := range c.groups {
		if len(g.active) == 0 {
			continue
		}
		m := make(map[string]string, len(g.active))
		for id, sym := range g.active {
			m[id] = sym
		}
		st.Groups[name] = m
	}
	for id, groupName := range c.positions {
		if groupName == "" {
			st.Unmapped[id] = "" // symbol recovered from policyGaps is not needed for gating
		}
	}
	for sym, n := range c.policyGaps {
		st.PolicyGaps[sym] = n
	}
	return json.Marshal(st)
}

// Restore replaces the controller's counters with a previously serialized
// snapshot. Positions referencing groups absent from the current
// configuration fail the restore rather than being silently dropped.
func (c *Controller) Restore(data []byte) error {
	var st snapshotState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode counter snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for name := range st.Groups {
		if _, ok := c.groups[name]; !ok {
			return fmt.Errorf("snapshot references unknown group %q", name)
		}
	}

	for _, g := range c.groups {
		g.active = map[string]string{}
	}
	c.positions = map[string]string{}
	c.policyGaps = map[string]int{}

	for name, members := range st.Groups {
		g := c.groups[name]
		for id, sym := range members {
			g.active[id] = sym
			c.positions[id] = name
		}
	}
	for id := range st.Unmapped {
		c.positions[id] = ""
	}
	for sym, n := range st.PolicyGaps {
		c.policyGaps[sym] = n
	}
	return nil
}
