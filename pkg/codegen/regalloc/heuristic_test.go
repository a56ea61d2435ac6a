package regalloc

import (
	"testing"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/codegen/amd64"
)

func TestHeuristicCosts(t *testing.T) {
	c := SpillCandidate{Reg: 3, Degree: 4, Uses: 3, Defs: 1}
	tests := []struct {
		h    SpillHeuristic
		want float64
	}{
		{CostHeuristic{}, 1},
		{DegreeHeuristic{}, -4},
		{FirstHeuristic{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.h.Name(), func(t *testing.T) {
			if got := tt.h.Cost(c); got != tt.want {
				t.Errorf("Cost() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := (CostHeuristic{}).Cost(SpillCandidate{Uses: 2}); got != 2 {
		t.Errorf("zero degree cost = %v, want 2", got)
	}
}

func TestHeuristicByName(t *testing.T) {
	for _, name := range HeuristicNames() {
		h, err := HeuristicByName(name)
		if err != nil {
			t.Fatalf("HeuristicByName(%q) failed: %v", name, err)
		}
		if h.Name() != name {
			t.Errorf("HeuristicByName(%q).Name() = %q", name, h.Name())
		}
	}
	if _, err := HeuristicByName("random"); err == nil {
		t.Error("HeuristicByName(random) should fail")
	}
}

func TestSelectSpill(t *testing.T) {
	table := amd64.NewTable().WithK(1)

	tests := []struct {
		name      string
		heuristic SpillHeuristic
		temp      string // register to mark as a spill temporary
		want      string
	}{
		// v1 is touched twice, v2 four times, both with degree 1
		{"cheapest", CostHeuristic{}, "", "v1"},
		{"tie goes to the lowest id", DegreeHeuristic{}, "", "v1"},
		{"temporaries last", CostHeuristic{}, "v1", "v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := parseFunc(t, table, pressureSrc)
			if tt.temp != "" {
				fn.Regs.Get(vreg(t, fn, tt.temp)).Temp = true
			}
			a := newRound(fn, table, Options{Heuristic: tt.heuristic}.withDefaults())
			if a.nodes.len(nodeSpill) != 2 {
				t.Fatalf("spill list has %d registers, want 2", a.nodes.len(nodeSpill))
			}

			a.selectSpill()
			want := vreg(t, fn, tt.want)
			if a.nodes.in(int(want)) != nodeSimplify {
				t.Errorf("%s is in %s, want simplify", tt.want, listName(nodeListNames[:], a.nodes.in(int(want))))
			}
			var other asm.RegID
			for _, name := range []string{"v1", "v2"} {
				if r := vreg(t, fn, name); r != want {
					other = r
				}
			}
			if a.nodes.in(int(other)) != nodeSpill {
				t.Errorf("the other candidate left the spill list")
			}
		})
	}
}
