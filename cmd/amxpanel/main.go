// Package main is the entry point for the amxpanel daemon.
//
// Usage:
//
//	amxpanel start                 — run the panel (controller link + viewer server)
//	amxpanel stop                  — stop the running daemon
//	amxpanel import <file> [name]  — store a project definition
//	amxpanel projects [query]      — list or search stored projects
//	amxpanel send <command>        — inject a command into a running panel
//	amxpanel status                — check daemon health
//	amxpanel hash                  — bcrypt a viewer password
//	amxpanel token                 — issue a viewer token
//	amxpanel version               — print version
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/amxpanel/amxpanel/internal/compositor"
	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/observability"
	"github.com/amxpanel/amxpanel/internal/resource"
	"github.com/amxpanel/amxpanel/internal/server"
	"github.com/amxpanel/amxpanel/internal/session"
	"github.com/amxpanel/amxpanel/internal/storage"
	"github.com/amxpanel/amxpanel/internal/transport"
)

const (
	version = "0.1.0"
	appName = "amxpanel"
)

// Config holds the daemon configuration.
type Config struct {
	DataDir      string
	Controller   string // controller websocket URL; empty runs viewer-only
	ViewAddr     string
	PanelID      int
	Project      string // stored project name or path to a JSON file
	Secret       string
	PasswordHash string
	LogLevel     slog.Level
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	cmd := os.Args[1]
	args := os.Args[2:]
	var err error
	switch cmd {
	case "start":
		err = runDaemon()
	case "stop":
		err = runStop()
	case "import":
		err = runImport(args)
	case "projects":
		err = runProjects(args)
	case "send":
		err = runSend(args)
	case "status":
		err = runStatus()
	case "hash":
		err = runHash()
	case "token":
		err = runToken()
	case "version":
		fmt.Printf("%s v%s\n", appName, version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s v%s — touch panel runtime

Usage:
  %s <command> [args]

Commands:
  start                 Run the panel (controller link + viewer server)
  stop                  Stop the running daemon
  import <file> [name]  Store a project definition (default name: file base name)
  projects [query]      List stored projects, or search their pages
  send <command>        Inject a command into the running panel
  status                Check daemon health
  hash                  Read a password and print its bcrypt hash
  token                 Issue a viewer token signed with AMXPANEL_SECRET
  version               Print version

Environment variables (also read from .env):
  AMXPANEL_DATA           Data directory (default: ~/.amxpanel)
  AMXPANEL_CONTROLLER     Controller websocket URL (empty: viewer only)
  AMXPANEL_VIEW_ADDR      Viewer listen address (default: 127.0.0.1:8080)
  AMXPANEL_PANEL_ID       Panel ID sent on registration
  AMXPANEL_PROJECT        Stored project name or JSON file (default: default)
  AMXPANEL_SECRET         Viewer token secret (empty disables auth)
  AMXPANEL_PASSWORD_HASH  bcrypt hash accepted by /api/login
  AMXPANEL_LOG_LEVEL      debug, info, warn or error (default: info)

`, appName, version, appName)
}

func loadConfig() Config {
	dataDir := os.Getenv("AMXPANEL_DATA")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("cannot determine home directory: %v", err)
		}
		dataDir = filepath.Join(home, ".amxpanel")
	}

	viewAddr := os.Getenv("AMXPANEL_VIEW_ADDR")
	if viewAddr == "" {
		viewAddr = "127.0.0.1:8080"
	}

	project := os.Getenv("AMXPANEL_PROJECT")
	if project == "" {
		project = "default"
	}

	panelID := 0
	if s := os.Getenv("AMXPANEL_PANEL_ID"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			log.Printf("[config] ignoring AMXPANEL_PANEL_ID=%q: %v", s, err)
		} else {
			panelID = n
		}
	}

	return Config{
		DataDir:      dataDir,
		Controller:   os.Getenv("AMXPANEL_CONTROLLER"),
		ViewAddr:     viewAddr,
		PanelID:      panelID,
		Project:      project,
		Secret:       os.Getenv("AMXPANEL_SECRET"),
		PasswordHash: os.Getenv("AMXPANEL_PASSWORD_HASH"),
		LogLevel:     observability.ParseLevel(os.Getenv("AMXPANEL_LOG_LEVEL")),
	}
}

// newLogger picks a text handler on a terminal and JSON otherwise.
func newLogger(name string, level slog.Level) *observability.Logger {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return observability.NewTextLogger(name, os.Stderr, level)
	}
	return observability.NewLoggerWithHandler(name,
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openStore(cfg Config) (*storage.SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return storage.NewSQLiteStore(filepath.Join(cfg.DataDir, "projects.db"))
}

// loadProject reads cfg.Project from a JSON file when it names one, else
// from the project store.
func loadProject(ctx context.Context, cfg Config) (*model.Project, error) {
	if strings.HasSuffix(cfg.Project, ".json") {
		f, err := os.Open(cfg.Project)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return model.LoadProject(f)
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Load(ctx, cfg.Project)
}

// runDaemon starts the panel session, the controller link and the viewer
// server, and runs until interrupted.
func runDaemon() error {
	cfg := loadConfig()
	logger := newLogger(appName, cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pf := newPIDFile(cfg.DataDir)
	if err := pf.acquire(); err != nil {
		return err
	}
	defer pf.remove()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proj, err := loadProject(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load project %q: %w", cfg.Project, err)
	}

	metrics := observability.NewMetricsCollector(0)
	sess, err := session.New(proj, session.Options{
		PanelID:    cfg.PanelID,
		Compositor: compositor.New(resource.NewFetcher()),
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var conn transport.Conn
	if cfg.Controller != "" {
		client := transport.NewWSClient(transport.WSConfig{
			URL:     cfg.Controller,
			PanelID: sess.PanelID(),
		}, metrics, logger)
		go func() {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[daemon] controller link: %v", err)
			}
		}()
		conn = client
		log.Printf("[daemon] controller %s, panel %d", cfg.Controller, sess.PanelID())
	} else {
		log.Printf("[daemon] no controller configured, viewer only")
	}

	srv := server.New(server.Config{
		Addr:         cfg.ViewAddr,
		Secret:       cfg.Secret,
		PasswordHash: cfg.PasswordHash,
		Viewer:       server.ViewerConfig{Title: cfg.Project},
	}, sess, logger)
	go func() {
		log.Printf("[daemon] viewer listening on %s", cfg.ViewAddr)
		if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[daemon] viewer server: %v", err)
			cancel()
		}
	}()

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx, conn) }()

	log.Printf("[daemon] %s v%s started with project %q", appName, version, cfg.Project)

	select {
	case <-sigCh:
		log.Printf("[daemon] shutting down...")
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			log.Printf("[daemon] session ended: %v", err)
		}
	}
	cancel()
	if conn != nil {
		conn.Close()
	}
	log.Printf("[daemon] shutdown complete")
	return nil
}
