package forecast

import (
	"slurmgpu/common"
	"slurmgpu/slurm"
)

// HostExpander memoizes node-expression expansion for one forecast pass.
// Expansion can shell out to scontrol, so each distinct expression is
// resolved at most once; a failed expansion yields zero hosts and the
// pass continues with placement-independent logic.
//
// Not safe for concurrent use; make one per pass.
type HostExpander struct {
	expand func(nodeExpr string) ([]string, error)
	cache  map[string][]string
}

func NewHostExpander(expand func(nodeExpr string) ([]string, error)) *HostExpander {
	return &HostExpander{expand: expand, cache: make(map[string][]string)}
}

// FixedHostExpander resolves expressions from a static table, for tests
// and replay.  Expressions not in the table expand to zero hosts.
func FixedHostExpander(table map[string][]string) *HostExpander {
	return NewHostExpander(func(nodeExpr string) ([]string, error) {
		return table[nodeExpr], nil
	})
}

// Expand returns the host names an expression covers, or nil for unknown
// or unresolvable expressions.
func (e *HostExpander) Expand(nodeExpr string) []string {
	if slurm.IsNoneValue(nodeExpr) {
		return nil
	}
	if hosts, found := e.cache[nodeExpr]; found {
		return hosts
	}
	var hosts []string
	if e.expand != nil {
		expanded, err := e.expand(nodeExpr)
		if err != nil {
			common.Log.Warningf("Cannot expand node expression %q: %v", nodeExpr, err)
		} else {
			hosts = expanded
		}
	}
	e.cache[nodeExpr] = hosts
	return hosts
}
