package main

import (
	"log"

	"github.com/chromabot/referee/internal/config"
	"github.com/chromabot/referee/internal/server"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	srv := server.New(cfg)

	log.Printf("starting referee on %s", cfg.Server.Address)
	log.Printf("tick interval %v, %d sectors per region", cfg.Game.Speed, cfg.Game.NumSectors)

	if err := srv.Start(); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}
