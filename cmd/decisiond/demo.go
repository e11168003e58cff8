package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lsdecision/decision/counters"
	"github.com/lsdecision/decision/decision"
	"github.com/lsdecision/decision/mock"
	"github.com/lsdecision/decision/state"
)

// loggingFibSink is the demo binary's FibSink: it just logs every published
// delta, standing in for the external FIB programmer per §6.
type loggingFibSink struct {
	log func(format string, args ...any)
}

func (f loggingFibSink) Publish(d state.RouteDatabaseDelta) {
	f.log("published route delta: node=%s updated=%d deleted=%d mplsUpdated=%d mplsDeleted=%d",
		d.ThisNodeName, len(d.UnicastRoutesToUpdate), len(d.UnicastRoutesToDelete),
		len(d.MplsRoutesToUpdate), len(d.MplsRoutesToDelete))
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the decision core against the built-in synthetic topology and print its RIB",
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	area := state.Area(areaFlag)
	node := state.Node(nodeFlag)
	log, err := newLogger(nodeFlag, logFileFlag, verboseFlag)
	if err != nil {
		return err
	}

	cfg := state.DefaultConfig(node)
	cfg.Areas = []state.Area{area}
	cfg.ColdStartDuration = 0

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(context.Canceled)

	env := &decision.Env{
		Context:         ctx,
		Cancel:          cancel,
		DispatchChannel: make(chan func(*decision.Decision) error, 128),
		Log:             log,
	}

	sink := loggingFibSink{log: func(format string, a ...any) { log.Info(fmt.Sprintf(format, a...)) }}
	d := decision.New(cfg, sink, counters.New("decisiond"), env)
	d.RegisterGauges("decisiond")

	go func() {
		if err := d.Start(); err != nil {
			log.Error("main loop exited with error", "error", err)
			panic(err)
		}
	}()

	adjs := mock.AdjacencyDatabases(mock.DefaultNodes, mock.DefaultEdges, area)
	prefixes := mock.PrefixDatabases(mock.DefaultNodes, nil)
	pub, err := mock.Publication(area, adjs, prefixes)
	if err != nil {
		return err
	}
	d.ApplyPublication(pub)

	// Give the single-threaded loop a moment to process the publication and
	// run its (ColdStartDuration=0) initial recompute.
	time.Sleep(100 * time.Millisecond)

	rdb, err := d.GetRouteDb(node)
	if err != nil {
		return err
	}
	fmt.Printf("routeDb for %s:\n", node)
	for prefix, route := range rdb.UnicastRoutes {
		fmt.Printf("  %s -> %d next-hop(s), cost via best path\n", prefix, route.Nexthops.Len())
	}
	for label, route := range rdb.MplsRoutes {
		fmt.Printf("  label %d -> %d next-hop(s)\n", label, route.Nexthops.Len())
	}

	d.Stop(context.Canceled)
	return nil
}
