package main

import (
	"context"
	"log"
	"os"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/admin"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	store, err := dbx.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer store.Close()

	if err := admin.New(store, cfg, logger, os.Stdout).Run(ctx, os.Args[1:]); err != nil {
		log.Printf("authctl: %v", err)
		store.Close()
		os.Exit(1)
	}
}
