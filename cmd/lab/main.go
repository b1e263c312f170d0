package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/config"
	"github.com/danielpatrickdp/cdpagentx/internal/lab"
	"github.com/danielpatrickdp/cdpagentx/internal/logging"
	"github.com/danielpatrickdp/cdpagentx/internal/rpc"
	"github.com/danielpatrickdp/cdpagentx/internal/state"
)

// #region main
func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("load env: %v", err)
	}
	dbPath := flag.String("db", env.DBPath, "path to the progress database (empty keeps progress in memory)")
	seed := flag.Int64("seed", env.Seed, "random seed (0 draws one)")
	tick := flag.Duration("tick", env.Tick, "tick period for every module")
	coursePath := flag.String("course", env.CoursePath, "optional course TOML")
	serveAddr := flag.String("serve", "", "also serve LabService on this address")
	flag.Parse()

	logger := logging.New(os.Stderr, "lab")

	course, err := config.LoadCourse(*coursePath)
	if err != nil {
		log.Fatalf("load course: %v", err)
	}

	var store *state.Store
	if *dbPath != "" {
		store, err = state.NewStore(*dbPath)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer store.Close()
	}

	l, err := lab.New(lab.Options{
		Seed:   *seed,
		Course: course,
		Tick:   *tick,
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to build lab: %v", err)
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := l.Start(ctx); err != nil {
		log.Fatalf("failed to start lab: %v", err)
	}

	if *serveAddr != "" {
		srv := rpc.NewServer(l, logging.New(os.Stderr, "rpc"))
		go func() {
			if err := rpc.ListenAndServe(ctx, *serveAddr, srv); err != nil {
				logger.Printf("serve: %v", err)
			}
		}()
	}

	fmt.Println("CDP Agent X lab ready.")
	fmt.Printf("  DB: %s | Seed: %d | Tick: %s\n", orDash(*dbPath), l.Seed(), *tick)
	fmt.Println("Type 'help' for commands (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			printStatus(l)
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := run(l, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// #endregion main

// #region commands
func run(l *lab.Lab, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		printHelp()
	case "status":
		printStatus(l)
	case "show":
		if len(fields) != 2 {
			return fmt.Errorf("usage: show <module>")
		}
		return printModule(l, fields[1])
	case "set":
		if len(fields) < 4 {
			return fmt.Errorf("usage: set <module> <key> <value>")
		}
		v, err := l.SetParam(fields[1], fields[2], strings.Join(fields[3:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("%s.%s = %v\n", fields[1], fields[2], v)
	case "move":
		if len(fields) != 3 {
			return fmt.Errorf("usage: move <index> <dir>")
		}
		i, err1 := strconv.Atoi(fields[1])
		d, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("move needs integer index and dir")
		}
		res, err := l.Move(i, d)
		if err != nil {
			return err
		}
		printEdit(res)
	case "add":
		res, err := l.Add()
		if err != nil {
			return err
		}
		printEdit(res)
	case "remove":
		if len(fields) != 2 {
			return fmt.Errorf("usage: remove <index>")
		}
		i, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("remove needs an integer index")
		}
		res, err := l.Remove(i)
		if err != nil {
			return err
		}
		printEdit(res)
	case "score":
		steps := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, "score")), ",")
		for i := range steps {
			steps[i] = strings.TrimSpace(steps[i])
		}
		fmt.Printf("lift %.2f%%\n", l.Score(steps)*100)
	case "progress":
		printProgress(l)
	case "wait":
		d := time.Second
		if len(fields) == 2 {
			parsed, err := time.ParseDuration(fields[1])
			if err != nil {
				return err
			}
			d = parsed
		}
		time.Sleep(d)
		printStatus(l)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func printHelp() {
	fmt.Println("  status                     readings of every module")
	fmt.Println("  show <module>              parameters, chart and threshold")
	fmt.Println("  set <module> <key> <val>   write a parameter")
	fmt.Println("  move <i> <dir> | add | remove <i>   edit the channel sequence")
	fmt.Println("  score <a,b,c>              rate an order without applying it")
	fmt.Println("  progress                   completion mapping")
	fmt.Println("  wait [dur]                 let the simulation run")
}

// #endregion commands

// #region output
func printStatus(l *lab.Lab) {
	fmt.Printf("%-9s  %-24s  %10s  %-14s  %s\n", "Module", "Metric", "Reading", "Threshold", "Done")
	for _, s := range l.Snapshots() {
		done := " "
		if s.Complete {
			done = "x"
		}
		fmt.Printf("%-9s  %-24s  %10s  %-14s  [%s]\n", s.ID, s.Metric, formatReading(s), s.Threshold, done)
	}
}

func printModule(l *lab.Lab, id string) error {
	s, err := l.Module(id)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", s.Title, s.ID)
	fmt.Printf("  %s: %s  [%s]  met=%v complete=%v\n", s.Metric, formatReading(s), s.Threshold, s.Met, s.Complete)
	if s.HasProjection {
		fmt.Printf("  projected: %.0f\n", s.Projection)
	}
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-12s %v\n", k, s.Params[k])
	}
	if len(s.Steps) > 0 {
		for i, c := range s.Breakdown {
			fmt.Printf("  %d. %-12s base %.4f  synergy %.4f\n", i+1, c.Token, c.Base, c.Synergy)
		}
	}
	if len(s.History) > 0 {
		fmt.Printf("  chart: %s\n", sparkline(s.History))
	}
	return nil
}

func printEdit(res lab.EditOutcome) {
	fmt.Printf("%s  lift %.2f%%", strings.Join(res.Steps, " -> "), res.Lift*100)
	if res.Decision.Transitioned {
		fmt.Print("  (complete)")
	}
	fmt.Println()
}

func printProgress(l *lab.Lab) {
	p := l.Progress()
	for _, id := range l.Modules() {
		fmt.Printf("  %-9s %v\n", id, p[id])
	}
}

func formatReading(s lab.Snapshot) string {
	switch s.ID {
	case lab.Orchestration:
		return fmt.Sprintf("%.2f%%", s.Reading*100)
	case lab.Optimiser:
		return fmt.Sprintf("%+.1f%%", s.Reading)
	}
	return fmt.Sprintf("%.0f%%", s.Reading*100)
}

func sparkline(vals []float64) string {
	const bars = "▁▂▃▄▅▆▇█"
	runes := []rune(bars)
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo, hi = min(lo, v), max(hi, v)
	}
	var b strings.Builder
	for _, v := range vals {
		i := 0
		if hi > lo {
			i = int((v - lo) / (hi - lo) * float64(len(runes)-1))
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion output
