// Command relay runs the screen-share relay process: one source
// listener, one sink listener, a shared media factory, and the
// fan-out controller that mirrors the source track to every sink.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/relayworks/screencast-relay/config"
	"github.com/relayworks/screencast-relay/logx"
	"github.com/relayworks/screencast-relay/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()

	log, closeLog, err := logx.New(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	defer closeLog()

	sup, err := supervisor.New(cfg, log)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	return sup.Run(context.Background())
}
