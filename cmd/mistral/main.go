package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/themobileprof/mistral-go/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cli.New(os.Stdout, os.Stderr).Run(ctx, os.Args[1:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return
	case errors.Is(err, cli.ErrUsage):
		log.Printf("[ERROR] %v", err)
		stop()
		os.Exit(2)
	default:
		log.Printf("[ERROR] %v", err)
		stop()
		os.Exit(1)
	}
}
