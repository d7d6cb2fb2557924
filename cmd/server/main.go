package main

import (
	"context"
	"log"

	"shelfkeeper/internal/server"
	"shelfkeeper/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	app := server.NewApp(cfg, nil)

	ctx := context.Background()
	if err := app.Run(ctx); err != nil {
		log.Fatalf("app terminated: %v", err)
	}
}
