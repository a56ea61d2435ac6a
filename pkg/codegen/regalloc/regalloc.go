// Package regalloc - Graph coloring register allocation
// Design: Iterated register coalescing (George & Appel) over a machine level CFG.
// Each round runs liveness, builds the interference graph, reduces it with
// simplify/coalesce/freeze/spill and colours the select stack. Real spills are
// rewritten to stack traffic and the whole pipeline runs again.
package regalloc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/container/intsets"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/logger"
)

var (
	// ErrUnallocatable means a spill temporary itself failed to get a colour
	ErrUnallocatable = errors.New("spill temporary could not be coloured")
	// ErrTooManyRounds means the spill loop hit Options.MaxRounds
	ErrTooManyRounds = errors.New("too many spill rounds")
)

// DefaultMaxRounds bounds the spill/retry loop
const DefaultMaxRounds = 32

// Options tune one allocation
type Options struct {
	Heuristic SpillHeuristic
	MaxRounds int
	Dump      io.Writer // if set, receives a diagnostic dump after each build
}

func (o Options) withDefaults() Options {
	if o.Heuristic == nil {
		o.Heuristic = CostHeuristic{}
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	return o
}

// Result summarizes an allocation
type Result struct {
	Rounds           int
	Spilled          []asm.RegID // registers rewritten to stack slots, all rounds
	CoalescedMoves   int         // final round
	ConstrainedMoves int
	FrozenMoves      int
	StackSize        int64
	// CalleeSaved lists, as qword registers in colour order, the callee-saved
	// registers given to virtual registers; the prologue must save them
	CalleeSaved []arch.PhysReg
}

type move struct {
	insn     *asm.Insn
	src, dst asm.RegID
}

// allocator holds the state of one round. Nothing in it survives the round.
type allocator struct {
	fn   *asm.Func
	arch *arch.Table
	opts Options
	n    int
	k    [arch.NumModes]int

	graph      *InterferenceGraph
	prepainted intsets.Sparse
	nodes      *partition
	moves      *partition
	moveList   []move
	nodeMoves  [][]int // move ids each register appears in
	alias      []asm.RegID
	uses, defs []int
}

// newRound prepares a fresh round: liveness, interference graph, worklists
func newRound(fn *asm.Func, t *arch.Table, opts Options) *allocator {
	for _, l := range fn.Regs.All() {
		if !l.IsPhysical() {
			l.Colour = arch.RegNone
		}
	}
	Liveness(fn, t)

	n := fn.Regs.Len()
	a := &allocator{
		fn:        fn,
		arch:      t,
		opts:      opts,
		n:         n,
		nodeMoves: make([][]int, n),
		alias:     make([]asm.RegID, n),
		uses:      make([]int, n),
		defs:      make([]int, n),
	}
	for m := arch.ModeNone; m < arch.NumModes; m++ {
		a.k[m] = t.Colours(m)
	}
	for i, l := range fn.Regs.All() {
		a.alias[i] = asm.RegID(i)
		if l.IsPhysical() {
			a.prepainted.Insert(i)
		}
	}
	a.graph = newInterferenceGraph(n, &a.prepainted)
	a.build()
	a.makeWorklists()
	return a
}

// kOf is the number of colours available to a register's width class
func (a *allocator) kOf(n asm.RegID) int {
	return a.k[a.fn.Regs.Get(n).Mode]
}

func (a *allocator) isPrepainted(n asm.RegID) bool {
	return a.prepainted.Has(int(n))
}

// Allocate assigns a colour to every virtual register of fn, rewriting spilled
// registers to stack slots until a round colours cleanly.
func Allocate(fn *asm.Func, t *arch.Table, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	logger.Debug("Starting graph coloring register allocation",
		"function", fn.Name, "heuristic", opts.Heuristic.Name(), "colours", t.K)

	res := &Result{}
	for {
		if res.Rounds >= opts.MaxRounds {
			return res, fmt.Errorf("%s: %w (limit %d)", fn.Name, ErrTooManyRounds, opts.MaxRounds)
		}
		res.Rounds++

		a := newRound(fn, t, opts)
		logger.LogRound(fn.Name, res.Rounds, a.n, a.graph.NumEdges(), len(a.moveList))
		if opts.Dump != nil {
			if err := Dump(opts.Dump, fn, t, a.graph); err != nil {
				return res, fmt.Errorf("%s: dump failed: %w", fn.Name, err)
			}
		}

		a.reduce()
		spilled := a.colour()
		res.CoalescedMoves = a.moves.len(moveCoalesced)
		res.ConstrainedMoves = a.moves.len(moveConstrained)
		res.FrozenMoves = a.moves.len(moveFrozen)
		if len(spilled) == 0 {
			break
		}

		for _, r := range spilled {
			logger.LogSpill(fn.Name, res.Rounds, fmt.Sprintf("%%v%d", r))
		}
		if err := RewriteSpills(fn, t, spilled); err != nil {
			return res, fmt.Errorf("%s: %w", fn.Name, err)
		}
		res.Spilled = append(res.Spilled, spilled...)
	}

	res.StackSize = fn.FrameSize
	res.CalleeSaved = calleeSavedUsed(fn, t)
	logger.LogAllocationComplete(fn.Name, res.Rounds, len(res.Spilled), res.CoalescedMoves)
	return res, nil
}

func calleeSavedUsed(fn *asm.Func, t *arch.Table) []arch.PhysReg {
	var used intsets.Sparse
	for _, l := range fn.Regs.All() {
		if !l.IsPhysical() && t.IsCalleeSaved(l.Colour) {
			used.Insert(t.Colour(l.Colour))
		}
	}
	var regs []arch.PhysReg
	for _, c := range used.AppendTo(nil) {
		regs = append(regs, t.RegFor(c, arch.ModeQword))
	}
	return regs
}

// AllocateProgram allocates independent functions concurrently. Each function
// owns all of its allocation state, so the only shared value is the table.
// jobs <= 0 means no limit.
func AllocateProgram(ctx context.Context, prog *asm.Program, t *arch.Table, opts Options, jobs int) ([]*Result, error) {
	results := make([]*Result, len(prog.Funcs))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, fn := range prog.Funcs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Allocate(fn, t, opts)
			results[i] = res
			return err
		})
	}
	return results, g.Wait()
}
