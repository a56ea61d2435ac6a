// Package main implements the regalloc binary.
//
// It reads a listing of functions over virtual registers, colours them with
// iterated register coalescing and prints the result with physical registers.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/codegen/amd64"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/codegen/regalloc"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/config"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/logger"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/optimizer"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "alloc":
		if err := alloc(os.Args[2:], os.Stdin, os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("regalloc version %s\n", version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`regalloc - Graph colouring register allocator for amd64 listings

Usage:
    regalloc alloc <file.s> [options]  Allocate registers (- reads stdin)
    regalloc version                   Show version
    regalloc help                      Show this help message

Options:
    -o <file>         Output listing (default: stdout)
    -k <n>            Colours available (default: every allocatable register)
    -heuristic <name> Spill heuristic: ` + strings.Join(regalloc.HeuristicNames(), ", ") + `
    -max-rounds <n>   Give up after n build/colour rounds
    -dump             Print the interference graph of each round to stderr
    -verify           Check the colouring and the final listing
    -j <n>            Functions allocated in parallel
    -v                Verbose output

Environment:
    REGALLOC_K, REGALLOC_HEURISTIC, REGALLOC_MAX_ROUNDS, REGALLOC_DUMP,
    REGALLOC_VERIFY, REGALLOC_JOBS, REGALLOC_LOG_LEVEL, REGALLOC_LOG_FORMAT,
    REGALLOC_LOG_FILE`)
}

func alloc(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.FromEnv()

	fs := flag.NewFlagSet("alloc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "output listing")
	verbose := fs.Bool("v", false, "verbose output")
	fs.IntVar(&cfg.Colours, "k", cfg.Colours, "colours available")
	fs.StringVar(&cfg.Heuristic, "heuristic", cfg.Heuristic, "spill heuristic")
	fs.IntVar(&cfg.MaxRounds, "max-rounds", cfg.MaxRounds, "round limit")
	fs.BoolVar(&cfg.Dump, "dump", cfg.Dump, "dump interference graphs")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "verify the colouring")
	fs.IntVar(&cfg.Jobs, "j", cfg.Jobs, "parallel functions")

	// the input file may come before the options
	var source string
	if len(args) > 0 && (args[0] == "-" || !strings.HasPrefix(args[0], "-")) {
		source, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if source == "" {
		source = fs.Arg(0)
	}
	if source == "" {
		return errors.New("no input file")
	}

	table := amd64.NewTable()
	if err := cfg.Validate(table.K); err != nil {
		return err
	}
	if *verbose {
		logger.InitDev()
	} else if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	if cfg.Colours > 0 {
		table = table.WithK(cfg.Colours)
	}

	src, err := readSource(source, stdin)
	if err != nil {
		return err
	}
	logger.LogFileProcessing(source)

	prog, err := asm.Parse(string(src), table)
	if err != nil {
		logger.LogError("parse", source, err.Error())
		return err
	}

	opts := cfg.Options()
	jobs := cfg.Jobs
	if cfg.Dump {
		// rounds of different functions must not interleave
		opts.Dump = stderr
		jobs = 1
	}
	results, err := regalloc.AllocateProgram(context.Background(), prog, table, opts, jobs)
	if err != nil {
		logger.LogError("allocate", source, err.Error())
		return err
	}

	if cfg.Verify {
		for _, fn := range prog.Funcs {
			if err := regalloc.Verify(fn, table); err != nil {
				logger.LogError("verify", source, err.Error())
				return err
			}
		}
	}

	removed := optimizer.PeepholeOptimize(prog, table)

	var buf bytes.Buffer
	for i, fn := range prog.Funcs {
		if i > 0 {
			buf.WriteByte('\n')
		}
		if err := asm.Fprint(&buf, fn, table, asm.ShowColours); err != nil {
			return err
		}
	}
	if cfg.Verify {
		if err := amd64.ValidateProgram(buf.String()); err != nil {
			logger.LogError("validate", source, err.Error())
			return err
		}
	}

	for i, res := range results {
		logger.Debug("Function allocated",
			"function", prog.Funcs[i].Name,
			"rounds", res.Rounds,
			"spilled", len(res.Spilled),
			"coalesced", res.CoalescedMoves,
			"constrained", res.ConstrainedMoves,
			"frozen", res.FrozenMoves,
			"stack", res.StackSize)
	}
	logger.Info("Allocation successful", "functions", len(prog.Funcs), "peephole_removed", removed)

	if *output == "" {
		_, err = stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(*output, buf.Bytes(), 0644)
}

func readSource(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}
