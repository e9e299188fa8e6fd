package main

import (
	"context"
	"log"
	"os"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
