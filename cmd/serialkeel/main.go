package main

import (
	"flag"
	"log"

	"serialkeel/internal/config"
	"serialkeel/internal/wsfront"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := wsfront.NewLogger("[SERIALKEEL] ")

	srv, err := wsfront.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	go waitForShutdown(srv)

	if err := srv.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
