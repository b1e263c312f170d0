package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

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
	addr := flag.String("addr", env.Addr, "listen address for LabService")
	flag.Parse()

	logger := logging.New(os.Stderr, "labd")

	course, err := config.LoadCourse(env.CoursePath)
	if err != nil {
		logger.Fatalf("load course: %v", err)
	}
	store, err := state.NewStore(env.DBPath)
	if err != nil {
		logger.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	l, err := lab.New(lab.Options{
		Seed:   env.Seed,
		Course: course,
		Tick:   env.Tick,
		Store:  store,
		Logger: logging.New(os.Stderr, "lab"),
	})
	if err != nil {
		logger.Fatalf("failed to build lab: %v", err)
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := l.Start(ctx); err != nil {
		logger.Fatalf("failed to start lab: %v", err)
	}
	logger.Printf("session %s | db %s | course revision %s", l.ID(), env.DBPath, course.RevisionName())

	srv := rpc.NewServer(l, logging.New(os.Stderr, "rpc"))
	if err := rpc.ListenAndServe(ctx, *addr, srv); err != nil {
		logger.Printf("serve: %v", err)
	}
	logger.Println("shutting down")
}

// #endregion main
