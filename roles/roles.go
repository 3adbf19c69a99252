// roles/roles.go
package roles

import (
	"fmt"

	"github.com/wfunc/roomserver/problem"
	"github.com/wfunc/roomserver/protocol"
)

// Catalog wraps a problem's static role declarations and validates member
// assignments against their cardinality bounds.
type Catalog struct {
	roles []problem.Role
}

func NewCatalog(roles []problem.Role) *Catalog {
	return &Catalog{roles: roles}
}

// Empty reports whether the problem declares no roles at all. An empty
// catalog accepts only empty assignments.
func (c *Catalog) Empty() bool {
	return len(c.roles) == 0
}

func (c *Catalog) Roles() []problem.Role {
	return append([]problem.Role(nil), c.roles...)
}

// CheckAssign validates a member's requested role set against the catalog and
// the other members' current holdings. current maps sid -> role numbers; the
// setter's own previous holdings are ignored.
func (c *Catalog) CheckAssign(current map[string][]int, sid string, want []int) error {
	for _, roleNo := range want {
		if roleNo < 0 || roleNo >= len(c.roles) {
			return protocol.NewError(protocol.InvalidRoles,
				fmt.Sprintf("role %d is out of range", roleNo))
		}
	}

	counts := c.holderCounts(current, sid)
	for _, roleNo := range want {
		counts[roleNo]++
	}
	for roleNo, role := range c.roles {
		if role.Max != nil && counts[roleNo] > *role.Max {
			return protocol.NewError(protocol.InvalidRoles,
				fmt.Sprintf("too many players for role %s", role.Name))
		}
	}
	return nil
}

// CheckStart validates the complete assignment at game start, enforcing both
// minimum and maximum holder counts.
func (c *Catalog) CheckStart(current map[string][]int) error {
	counts := c.holderCounts(current, "")
	for roleNo, role := range c.roles {
		if role.Min != nil && counts[roleNo] < *role.Min {
			return protocol.NewError(protocol.InvalidRoles,
				fmt.Sprintf("not enough players for role %s", role.Name))
		}
		if role.Max != nil && counts[roleNo] > *role.Max {
			return protocol.NewError(protocol.InvalidRoles,
				fmt.Sprintf("too many players for role %s", role.Name))
		}
	}
	return nil
}

// holderCounts tallies role holders across members, skipping excludeSID.
func (c *Catalog) holderCounts(current map[string][]int, excludeSID string) []int {
	counts := make([]int, len(c.roles))
	for sid, held := range current {
		if sid == excludeSID {
			continue
		}
		for _, roleNo := range held {
			if roleNo >= 0 && roleNo < len(counts) {
				counts[roleNo]++
			}
		}
	}
	return counts
}
