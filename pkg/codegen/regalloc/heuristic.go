package regalloc

import (
	"fmt"
	"sort"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// SpillCandidate is what a heuristic gets to see about a potential spill
type SpillCandidate struct {
	Reg    asm.RegID
	Mode   arch.Mode
	Degree int
	Uses   int
	Defs   int
	Temp   bool
}

// SpillHeuristic ranks potential spills. The candidate with the lowest cost
// is spilled; ties go to the lowest register id.
type SpillHeuristic interface {
	Name() string
	Cost(c SpillCandidate) float64
}

// CostHeuristic prefers registers that are rarely touched but interfere a lot
type CostHeuristic struct{}

func (CostHeuristic) Name() string { return "cost" }

func (CostHeuristic) Cost(c SpillCandidate) float64 {
	if c.Degree == 0 {
		return float64(c.Uses + c.Defs)
	}
	return float64(c.Uses+c.Defs) / float64(c.Degree)
}

// DegreeHeuristic spills the register with the most neighbours
type DegreeHeuristic struct{}

func (DegreeHeuristic) Name() string { return "degree" }

func (DegreeHeuristic) Cost(c SpillCandidate) float64 {
	return -float64(c.Degree)
}

// FirstHeuristic spills the lowest numbered candidate
type FirstHeuristic struct{}

func (FirstHeuristic) Name() string { return "first" }

func (FirstHeuristic) Cost(SpillCandidate) float64 { return 0 }

var heuristics = map[string]SpillHeuristic{
	"cost":   CostHeuristic{},
	"degree": DegreeHeuristic{},
	"first":  FirstHeuristic{},
}

// HeuristicByName looks up a built-in heuristic
func HeuristicByName(name string) (SpillHeuristic, error) {
	if h, ok := heuristics[name]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("unknown spill heuristic %q (have %v)", name, HeuristicNames())
}

// HeuristicNames lists the built-in heuristics in sorted order
func HeuristicNames() []string {
	names := make([]string, 0, len(heuristics))
	for n := range heuristics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
