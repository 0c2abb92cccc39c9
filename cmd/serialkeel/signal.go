package main

import (
	"os"
	"os/signal"
	"syscall"

	"serialkeel/internal/wsfront"
)

// waitForShutdown blocks until SIGINT or SIGTERM arrives, then drives the
// server's graceful shutdown.
func waitForShutdown(srv *wsfront.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	srv.Shutdown()
}
