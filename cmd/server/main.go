package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"blockworld/mobs/internal/app"
	"blockworld/mobs/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a mobsim config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
