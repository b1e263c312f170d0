package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/cdpagentx/internal/archive"
	"github.com/danielpatrickdp/cdpagentx/internal/logging"
	"github.com/danielpatrickdp/cdpagentx/internal/replay"
	"github.com/danielpatrickdp/cdpagentx/internal/state"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	outPath := flag.String("out", "", "write the trace to this .jsonl.zst file")
	dbPath := flag.String("db", "", "persist progress and transitions to this database")
	jsonOut := flag.Bool("json", false, "print the report as JSON")
	verbose := flag.Bool("v", false, "log session events to stderr")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--out trace.jsonl.zst] [--db path] [--json]")
		os.Exit(2)
	}
	os.Exit(run(*fixturePath, *outPath, *dbPath, *jsonOut, *verbose))
}

// #endregion main

// #region run

func run(fixturePath, outPath, dbPath string, jsonOut, verbose bool) int {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	var opts replay.Options
	if verbose {
		opts.Logger = logging.New(os.Stderr, "replay")
	}
	if dbPath != "" {
		store, err := state.NewStore(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open db: %v\n", err)
			return 2
		}
		defer store.Close()
		opts.Store = store
	}
	if outPath != "" {
		w, err := archive.CreateFile(outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
		opts.Trace = w
	}

	rep, err := replay.Run(f, opts)
	if opts.Trace != nil {
		if cerr := opts.Trace.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	if jsonOut {
		printJSON(rep)
	} else {
		printReport(f, rep, outPath)
	}
	if !rep.Passed() {
		return 1
	}
	return 0
}

// #endregion run

// #region output

func printReport(f *replay.Fixture, rep *replay.Report, outPath string) {
	if f.Description != "" {
		fmt.Println(f.Description)
	}
	fmt.Printf("Session %s | seed %d | %d steps | %d rows\n\n", rep.SessionID, f.Seed, f.Steps, len(rep.Rows))

	fmt.Printf("%-10s  %10s  %-8s  %-8s\n", "Module", "Reading", "Complete", "Expected")
	fmt.Printf("%-10s+-%10s+-%-8s+-%-8s\n", "----------", "----------", "--------", "--------")
	ids := make([]string, 0, len(rep.Readings))
	for id := range rep.Readings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		want := "-"
		if v, ok := f.Expected[id]; ok {
			want = fmt.Sprint(v)
		}
		fmt.Printf("%-10s  %10.4f  %-8v  %-8s\n", id, rep.Readings[id], rep.Progress[id], want)
	}

	if len(rep.Transitions) > 0 {
		fmt.Println("\nTransitions:")
		for _, tr := range rep.Transitions {
			fmt.Printf("  step %4d  %s\n", tr.Step, tr.Module)
		}
	}
	if outPath != "" {
		fmt.Printf("\nTrace written to %s\n", outPath)
	}
	if rep.Passed() {
		fmt.Println("\nPASS")
		return
	}
	fmt.Println("\nFAIL")
	for _, m := range rep.Mismatches {
		fmt.Printf("  %s\n", m)
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal json: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// #endregion output
