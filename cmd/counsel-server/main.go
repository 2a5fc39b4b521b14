// Command counsel-server exposes the counseling agent over HTTP. Each
// conversation_id owns one agent; resending the full message history per
// request keeps clients stateless.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/theimaginaryfoundation/socratic-counsel/counsel"
	"github.com/theimaginaryfoundation/socratic-counsel/counsel/provider"
	"github.com/theimaginaryfoundation/socratic-counsel/counsel/store"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	appCfg := counsel.DefaultConfig()
	if cfg.ConfigPath != "" {
		appCfg, err = counsel.LoadConfig(cfg.ConfigPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
	}
	if err := appCfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	log, err := counsel.NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summaries counsel.SummaryStore
	var db *store.SQLStore
	if appCfg.Memory.UseSummaryMemory {
		db, err = store.Open(appCfg.Memory.Driver, appCfg.Memory.DSN, appCfg.Memory.MaxOpenConns, appCfg.Memory.MaxIdleConns, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		defer db.Close()
		if err := db.Init(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		summaries = db
	}

	client := provider.NewClient(appCfg.Generation, apiKey)
	summarizer := provider.NewSessionSummarizer(client, "")

	srv := newServer(appCfg, client, summaries, summarizer, log)
	if cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := srv.routes()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML config file path")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (default: OPENAI_API_KEY env var; may be empty for local endpoints)")
	fs.StringVar(&cfg.LogMode, "log-mode", cfg.LogMode, "Logger mode: prod or dev")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
