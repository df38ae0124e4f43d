// Command rewards-server runs the store directory, reward eligibility API and
// store bootstrap for the configured Shopify store.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartrewards/service_layer/internal/app/runtime"
	"github.com/cartrewards/service_layer/internal/config"
)

func main() {
	envFile := flag.String("env", "", "path to a .env file (default: ./.env when present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	application, err := runtime.NewApplication(cfg)
	if err != nil {
		log.Fatalf("init application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)
	if runErr != nil {
		log.Printf("server error: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatal("exiting after server error")
	}
}
