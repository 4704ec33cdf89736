package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildbeaver/trigger-engine/common/util"
	"github.com/buildbeaver/trigger-engine/common/version"
	"github.com/buildbeaver/trigger-engine/server/app"
)

func main() {
	fmt.Printf("Trigger Engine v%s\n", version.VersionToString())
	fmt.Printf("Starting with args: %v\n", util.FilterOSArgs(os.Args, app.LogSafeFlags))

	config, err := app.ConfigFromFlags()
	if err != nil {
		log.Fatalf("Error parsing flags: %s", err)
	}

	_, cleanup, err := app.New(context.Background(), config)
	if err != nil {
		log.Fatalf("Error creating app: %s", err)
	}
	defer cleanup()

	// The trigger engine exposes no HTTP surface of its own (§1, §6): triggerEvent and
	// triggerNextJobs are invoked directly by the host process that owns routing and
	// authentication. This process just keeps the service graph (and its DB connection) alive.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Print("Trigger engine shutdown complete")
}
