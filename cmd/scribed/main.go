// Command scribed serves the transcription job API over HTTP.
//
// Jobs are submitted with POST /jobs and observed with GET /jobs/:id or
// the per-job SSE stream at GET /jobs/:id/events.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/scribe/app"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/service"
	"github.com/kbukum/scribe/sse"
	"github.com/kbukum/scribe/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "scribed:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "config file path")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return nil
	}

	cfg, err := app.LoadConfig("scribed", *configFile)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging, "scribed")
	log.Info("starting", logger.Fields("version", version.Get().String()))

	reg, err := app.NewRegistry(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := app.NewOrchestrator(ctx, cfg, reg, log)
	if err != nil {
		return err
	}

	hub := sse.NewHub(log)
	defer hub.Stop()
	manager := service.NewManager(orch, hub, log)

	srv := service.NewServer(cfg.Server, log)
	service.NewHandlers(manager, hub, reg).Register(srv.Engine())
	srv.Engine().GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	})

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down")
	return srv.Stop(context.Background())
}
