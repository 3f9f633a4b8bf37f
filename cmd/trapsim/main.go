// SPDX-License-Identifier: Unlicense OR MIT

// Command trapsim boots the trap core on the machine model and runs
// one of the built-in scenarios, printing what the kernel wrote to the
// serial line and every handler invocation.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/maxgmr/tlenek/kernel"
	"github.com/maxgmr/tlenek/kernel/sim"
)

type options struct {
	debug      bool
	faultLimit int
	timerHz    uint
	maxSteps   int
	logger     *slog.Logger
}

func main() {
	scenario := flag.String("scenario", "breakpoint", "Scenario to run")
	all := flag.Bool("all", false, "Run every scenario")
	list := flag.Bool("list", false, "List scenarios")
	debug := flag.Bool("debug", true, "Report resumable faults")
	faultLimit := flag.Int("fault-limit", kernel.DefaultConfig().FaultRepeatLimit, "Consecutive identical faults before halting, 0 for no limit")
	timerHz := flag.Uint("timer-hz", 0, "Timer interrupt rate in Hz, 0 for the power-on rate")
	maxSteps := flag.Int("max-steps", 100000, "Instruction limit per program")
	verbose := flag.Bool("v", false, "Log every delivery")
	flag.Parse()

	if *list {
		for _, sc := range sim.Scenarios() {
			fmt.Printf("%-16s %s\n", sc.Name, sc.Description)
		}
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := options{
		debug:      *debug,
		faultLimit: *faultLimit,
		timerHz:    *timerHz,
		maxSteps:   *maxSteps,
		logger:     slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}

	var scenarios []sim.Scenario
	if *all {
		scenarios = sim.Scenarios()
	} else {
		sc, ok := sim.LookupScenario(*scenario)
		if !ok {
			fmt.Fprintf(os.Stderr, "trapsim: unknown scenario %q (try -list)\n", *scenario)
			os.Exit(2)
		}
		scenarios = []sim.Scenario{sc}
	}

	// Each scenario gets its own machine; reports are printed in order.
	reports := make([]strings.Builder, len(scenarios))
	g := new(errgroup.Group)
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			return run(&reports[i], sc, opts)
		})
	}
	err := g.Wait()
	for i := range reports {
		os.Stdout.WriteString(reports[i].String())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "trapsim: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, sc sim.Scenario, opts options) error {
	cfg := kernel.DefaultConfig()
	cfg.Debug = opts.debug
	cfg.FaultRepeatLimit = opts.faultLimit
	cfg.TimerFrequency = uint32(opts.timerHz)

	m := sim.New(sim.Options{
		Logger:   opts.logger.With("scenario", sc.Name),
		MaxSteps: opts.maxSteps,
	})
	s, err := sim.Boot(m, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", sc.Name, err)
	}
	runErr := sc.Run(m, s)

	fmt.Fprintf(w, "== %s: %s\n", sc.Name, sc.Description)
	fmt.Fprintf(w, "-- serial\n%s", m.Transcript())
	if t := m.Transcript(); t != "" && !strings.HasSuffix(t, "\n") {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "-- deliveries")
	var last *sim.Delivery
	for i, d := range m.Deliveries() {
		gate := "interrupt"
		if d.Trap {
			gate = "trap"
		}
		fmt.Fprintf(w, "%3d %-24s rip=%#x stack=%#x ist=%d %s gate\n", i, d.Vector.Name(), d.RIP, d.Stack, d.IST, gate)
		if d.Vector < kernel.FirstAvailable {
			last = &m.Deliveries()[i]
		}
	}
	if last != nil {
		fmt.Fprintf(w, "-- last exception returns to %#x: %s\n", last.RIP, m.Disassemble(last.RIP))
	}
	fmt.Fprintf(w, "-- state %v after %d instructions, %d timer ticks, uptime %v\n", m.State(), m.Steps(), s.Ticks(), s.Uptime())

	switch {
	case runErr == nil:
	case errors.Is(runErr, sim.ErrHalted):
		// Fatal exceptions park the processor.
		fmt.Fprintln(w, "-- kernel halted")
	default:
		return fmt.Errorf("%s: %w", sc.Name, runErr)
	}
	return nil
}
