package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/nearby-backend/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}

	application, err := app.New(cfg)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		application.Log.Error("Start failed", "error", err)
		_ = application.Close(context.Background())
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- application.Run() }()

	select {
	case <-ctx.Done():
		application.Log.Info("Shutting down")
	case err := <-serveErr:
		if err != nil {
			application.Log.Error("Server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Close(shutdownCtx); err != nil {
		fmt.Printf("shutdown: %v\n", err)
		os.Exit(1)
	}
}
