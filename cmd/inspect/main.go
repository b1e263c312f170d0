package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/completion"
	"github.com/danielpatrickdp/cdpagentx/internal/logging"
	"github.com/danielpatrickdp/cdpagentx/internal/rpc"
	"github.com/danielpatrickdp/cdpagentx/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the lab database")
	last := flag.Int("last", 20, "show N most recent transitions and sessions")
	module := flag.String("module", "", "filter transitions to one module")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	addr := flag.String("addr", "", "inspect a running labd at host:port instead of a database")
	flag.Parse()

	if *addr != "" {
		if err := inspectRemote(*addr, *module, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/cdplab.db [--last N] [--module id] [--json]")
		fmt.Fprintln(os.Stderr, "       inspect --addr host:port [--module id] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	out, err := collect(store, *last, *module)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *jsonOut {
		err = printJSON(out)
	} else {
		printTables(out)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region remote

// labReader is the read-only slice of rpc.Client the remote view needs.
type labReader interface {
	Healthy(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (rpc.SessionView, error)
	Progress(ctx context.Context) (map[string]bool, error)
}

type liveModuleRow struct {
	ID        string         `json:"id"`
	Metric    string         `json:"metric"`
	Reading   float64        `json:"reading"`
	Tick      int            `json:"tick"`
	Threshold string         `json:"threshold"`
	Met       bool           `json:"met"`
	Complete  bool           `json:"complete"`
	Params    map[string]any `json:"params,omitempty"`
	Steps     []string       `json:"steps,omitempty"`
}

type liveOutput struct {
	Session  string          `json:"session_id"`
	Seed     int64           `json:"seed"`
	Progress map[string]bool `json:"progress"`
	Modules  []liveModuleRow `json:"modules"`
}

func inspectRemote(addr, module string, jsonOut bool) error {
	client, err := rpc.NewClient(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := collectLive(ctx, client, module)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(out)
	}
	printLive(out)
	return nil
}

func collectLive(ctx context.Context, lab labReader, module string) (liveOutput, error) {
	var out liveOutput
	ok, err := lab.Healthy(ctx)
	if err != nil {
		return out, fmt.Errorf("health check: %w", err)
	}
	if !ok {
		return out, errors.New("lab is not serving")
	}
	view, err := lab.Snapshot(ctx)
	if err != nil {
		return out, fmt.Errorf("snapshot: %w", err)
	}
	progress, err := lab.Progress(ctx)
	if err != nil {
		return out, fmt.Errorf("progress: %w", err)
	}
	if progress == nil {
		progress = map[string]bool{}
	}
	out = liveOutput{Session: view.SessionID, Seed: view.Seed, Progress: progress}
	for _, m := range view.Modules {
		if module != "" && m.ID != module {
			continue
		}
		out.Modules = append(out.Modules, liveModuleRow{
			ID:        m.ID,
			Metric:    m.Metric,
			Reading:   m.Reading,
			Tick:      m.Tick,
			Threshold: m.Threshold,
			Met:       m.Met,
			Complete:  m.Complete,
			Params:    m.Params,
			Steps:     m.Steps,
		})
	}
	return out, nil
}

// #endregion remote

// #region collect

type transitionRow struct {
	Session   string         `json:"session_id"`
	Module    string         `json:"module"`
	Reading   float64        `json:"reading"`
	Threshold string         `json:"threshold"`
	Params    map[string]any `json:"params,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type sessionRow struct {
	Session  string `json:"session_id"`
	Seed     int64  `json:"seed"`
	Revision string `json:"revision"`
	Started  string `json:"started_at"`
	Ended    string `json:"ended_at,omitempty"`
}

type output struct {
	Progress    map[string]bool `json:"progress"`
	Sessions    []sessionRow    `json:"sessions"`
	Transitions []transitionRow `json:"transitions"`
}

func collect(store *state.Store, last int, module string) (output, error) {
	out := output{Progress: map[string]bool{}}
	raw, ok, err := store.Get(completion.StorageKey)
	if err != nil {
		return out, fmt.Errorf("read progress: %w", err)
	}
	if ok {
		out.Progress = completion.Decode(raw, nil)
	}

	sessions, err := store.ListSessions(last)
	if err != nil {
		return out, err
	}
	for _, s := range sessions {
		row := sessionRow{
			Session:  s.SessionID,
			Seed:     s.Seed,
			Revision: s.Revision,
			Started:  s.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
		if !s.EndedAt.IsZero() {
			row.Ended = s.EndedAt.Format("2006-01-02T15:04:05Z")
		}
		out.Sessions = append(out.Sessions, row)
	}

	entries, err := logging.ListTransitions(store.DB(), last)
	if err != nil {
		return out, err
	}
	for _, e := range entries {
		if module != "" && e.Module != module {
			continue
		}
		row := transitionRow{
			Session:   e.SessionID,
			Module:    e.Module,
			Reading:   e.Reading,
			Threshold: e.Threshold,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if e.ParamsJSON != "" {
			json.Unmarshal([]byte(e.ParamsJSON), &row.Params)
		}
		out.Transitions = append(out.Transitions, row)
	}
	return out, nil
}

// #endregion collect

// #region output

func printTables(out output) {
	fmt.Println("Progress:")
	if len(out.Progress) == 0 {
		fmt.Println("  (none)")
	}
	keys := make([]string, 0, len(out.Progress))
	for k := range out.Progress {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-10s %v\n", k, out.Progress[k])
	}

	fmt.Printf("\n%-12s  %20s  %-8s  %-20s  %s\n", "Session", "Seed", "Revision", "Started", "Ended")
	fmt.Printf("%-12s+-%20s+-%-8s+-%-20s+-%s\n",
		"------------", "--------------------", "--------", "--------------------", "--------------------")
	for _, s := range out.Sessions {
		ended := s.Ended
		if ended == "" {
			ended = "live"
		}
		fmt.Printf("%-12s  %20d  %-8s  %-20s  %s\n", shortID(s.Session), s.Seed, s.Revision, s.Started, ended)
	}

	fmt.Printf("\n%-12s  %-9s  %10s  %-14s  %s\n", "Session", "Module", "Reading", "Threshold", "Time")
	fmt.Printf("%-12s+-%-9s+-%10s+-%-14s+-%s\n",
		"------------", "---------", "----------", "--------------", "--------------------")
	for _, r := range out.Transitions {
		fmt.Printf("%-12s  %-9s  %10.4f  %-14s  %s\n", shortID(r.Session), r.Module, r.Reading, r.Threshold, r.CreatedAt)
	}
}

func printLive(out liveOutput) {
	fmt.Printf("Session %s  seed %d\n\n", shortID(out.Session), out.Seed)
	fmt.Printf("%-9s  %-28s  %10s  %6s  %-14s  %-4s  %s\n", "Module", "Metric", "Reading", "Tick", "Threshold", "Met", "Complete")
	fmt.Printf("%-9s+-%-28s+-%10s+-%6s+-%-14s+-%-4s+-%s\n",
		"---------", "----------------------------", "----------", "------", "--------------", "----", "--------")
	for _, m := range out.Modules {
		fmt.Printf("%-9s  %-28s  %10.4f  %6d  %-14s  %-4v  %v\n", m.ID, m.Metric, m.Reading, m.Tick, m.Threshold, m.Met, m.Complete)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
