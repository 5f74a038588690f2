// Command roadtiles runs the Road Tiles game server.
//
// Commands:
//  1. "server" (default) runs the HTTP server exposing the REST API, WebSocket and an /mcp endpoint
//  2. "mcp" runs an MCP stdio server, spinning up an internal HTTP API when none is reachable
//  3. "validate" checks preset files
//  4. "analyze" drives each preset's car without slides and reports how far it gets
//
// Flags read their defaults from the environment; a .env file in the working
// directory is loaded first.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/roadtiles/api"
	"github.com/wricardo/mcp-training/roadtiles/game/config"
	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/service"
	"github.com/wricardo/mcp-training/roadtiles/game/session"
	"github.com/wricardo/mcp-training/roadtiles/game/store"
	"github.com/wricardo/mcp-training/roadtiles/transport/mcp"
	"github.com/wricardo/mcp-training/roadtiles/transport/websocket"
	"github.com/wricardo/mcp-training/roadtiles/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Road Tiles Server"
)

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	app := newApp()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("error loading .env file", "error", envErr)
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal("roadtiles failed", "error", err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "roadtiles",
		Usage:   "slide road tiles to keep a self-driving car on the road",
		Version: Version,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory containing preset files",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "data/roadtiles.db",
				Usage:   "SQLite database for user presets and results",
				Sources: cli.EnvVars("DB_PATH"),
			},
			&cli.StringFlag{
				Name:    "sessions-dir",
				Value:   "sessions",
				Usage:   "directory where sessions are persisted",
				Sources: cli.EnvVars("SESSIONS_DIR"),
			},
		}, serverFlags()...),
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "run the HTTP server with REST API, WebSocket and MCP endpoint",
				Flags:   serverFlags(),
				Action:  runServer,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   "http://localhost:8080",
						Usage:   "REST API to proxy; an internal one is started when unreachable",
						Sources: cli.EnvVars("MCP_API_URL"),
					},
				},
				Action: runStdioMCP,
			},
			{
				Name:      "validate",
				Usage:     "validate preset files",
				ArgsUsage: "[file...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "builtins", Usage: "also validate the built-in presets"},
				},
				Action: runValidate,
			},
			{
				Name:      "analyze",
				Usage:     "drive each preset's car without slides and report how far it gets",
				ArgsUsage: "[preset-id|file...]",
				Action:    runAnalyze,
			},
		},
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "HTTP server port",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "HTTP server host",
			Sources: cli.EnvVars("HOST"),
		},
		&cli.DurationFlag{
			Name:    "autotick",
			Usage:   "advance running sessions on this interval (0 leaves the clock to clients)",
			Sources: cli.EnvVars("AUTOTICK"),
		},
		&cli.DurationFlag{
			Name:    "session-ttl",
			Value:   24 * time.Hour,
			Usage:   "remove sessions not accessed for this long",
			Sources: cli.EnvVars("SESSION_TTL"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "enable ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "custom ngrok domain (optional)",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

// newLogger builds the process logger on stderr
func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "roadtiles",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// services holds everything the transports need
type services struct {
	game     service.GameService
	sessions *session.Manager
	store    *store.Store
	persist  *session.FilePersistence
}

func (s *services) Close() error {
	if err := s.sessions.SaveAllSessions(); err != nil {
		return err
	}
	return s.store.Close()
}

// initializeServices wires the store, preset and session managers, and the game service
func initializeServices(cmd *cli.Command, logger *log.Logger) (*services, error) {
	db, err := store.Open(cmd.String("db-path"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetLogger(logger.WithPrefix("store"))

	configDir := cmd.String("config-dir")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		logger.Warn("config directory not found, using built-in and stored presets only", "dir", configDir)
		configDir = ""
	}

	configManager, err := config.NewManager(configDir,
		config.WithStore(db),
		config.WithLogger(logger.WithPrefix("config")))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(cmd.String("sessions-dir"), configManager)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)
	sessionManager.SetLogger(logger.WithPrefix("session"))

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", "error", err)
	}

	gameService := service.NewGameService(sessionManager, configManager,
		service.WithResultStore(db),
		service.WithLogger(logger.WithPrefix("service")))

	return &services{
		game:     gameService,
		sessions: sessionManager,
		store:    db,
		persist:  persistence,
	}, nil
}

// runServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.String("log-level"))
	logger.Info("starting", "app", AppName, "version", Version)

	svc, err := initializeServices(cmd, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("shutdown save failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(logger.WithPrefix("ws"))
	go hub.Run(ctx)

	apiServer := api.NewServer(svc.game, hub, logger.WithPrefix("api"))

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.Handle("/mcp", mcpHandler(mcpClient.GetMCPServer()))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sessionCleanupRoutine(ctx, svc.sessions, cmd.Duration("session-ttl"), logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		filesystemSyncRoutine(ctx, svc.sessions, svc.persist, logger)
	}()

	if interval := cmd.Duration("autotick"); interval > 0 {
		logger.Info("server clock enabled", "interval", interval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			apiServer.RunClock(ctx, interval)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr,
			"api", fmt.Sprintf("http://%s/api", addr),
			"ws", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd, mainRouter, logger.WithPrefix("ngrok"))
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cmd *cli.Command, handler http.Handler, logger *log.Logger) {
	authToken := cmd.String("ngrok-auth")
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain := cmd.String("ngrok-domain"); domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info("using custom domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start tunnel", "error", err)
		return
	}

	url := tun.URL()
	logger.Info("tunnel established", "url", url,
		"api", url+"/api",
		"ws", url+"/ws?session=<session_id>",
		"mcp", url+"/mcp")

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.Serve(tun); err != nil && err != http.ErrServerClosed {
		logger.Error("tunnel server error", "error", err)
	}
	logger.Info("tunnel closed")
}

// mcpHandler answers single JSON-RPC messages posted to /mcp
func mcpHandler(mcpServer *server.MCPServer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		if response == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		}
	})
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within ttl.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, ttl time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				logger.Info("cleaned up expired sessions", "removed", removed)
			}
		}
	}
}

// filesystemSyncRoutine drops sessions from memory once their file has been
// deleted from the sessions directory.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, logger *log.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned := 0
			for _, sess := range manager.List() {
				if persistence.Exists(sess.ID) {
					continue
				}
				if err := manager.DeleteFromMemory(sess.ID); err == nil {
					pruned++
					logger.Debug("pruned session from memory (file deleted)", "session", sess.ID)
				}
			}
			if pruned > 0 {
				logger.Info("filesystem sync pruned orphaned sessions", "pruned", pruned)
			}
		}
	}
}

// runStdioMCP runs an MCP stdio server. It reuses the API at --api-url when it
// answers; otherwise it starts an internal HTTP API on a random loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.String("log-level"))
	baseURL := strings.TrimRight(cmd.String("api-url"), "/")

	if !apiReachable(baseURL) {
		logger.Info("no external API server found, starting internal HTTP server", "checked", baseURL)

		svc, err := initializeServices(cmd, logger)
		if err != nil {
			return err
		}
		defer svc.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		hub := websocket.NewHub(logger.WithPrefix("ws"))
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, hub, logger.WithPrefix("api"))}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				logger.Error("internal HTTP server error", "error", err)
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
	}

	logger.Info("MCP stdio server ready", "api", baseURL)
	mcpClient := mcp.NewClient(baseURL)
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func apiReachable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runValidate validates the given files, or every file in the config directory
func runValidate(ctx context.Context, cmd *cli.Command) error {
	var results []validate.Result
	if cmd.Bool("builtins") {
		results = append(results, validate.Builtins()...)
	}

	if files := cmd.Args().Slice(); len(files) > 0 {
		for _, f := range files {
			results = append(results, validate.File(f))
		}
	} else {
		fromDir, err := validate.Dir(cmd.String("config-dir"))
		if err != nil {
			return fmt.Errorf("read config directory: %w", err)
		}
		results = append(results, fromDir...)
	}

	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	if invalid := validate.Report(w, results); invalid > 0 {
		return cli.Exit(fmt.Sprintf("%d invalid preset(s)", invalid), 1)
	}
	return nil
}

// runAnalyze reports on the named presets, or on every built-in and file preset
func runAnalyze(ctx context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}

	targets := cmd.Args().Slice()
	if len(targets) == 0 {
		targets = engine.BuiltinPresetIDs()
		if fromDir, err := validate.Dir(cmd.String("config-dir")); err == nil {
			for _, r := range fromDir {
				if r.Analysis != nil {
					validate.WriteAnalysis(w, r.Analysis)
				}
			}
		}
	}

	for _, target := range targets {
		p, ok := engine.BuiltinPreset(target)
		if !ok {
			var err error
			if p, err = engine.LoadPreset(target); err != nil {
				fmt.Fprintf(w, "=== %s ===\n%v\n\n", target, err)
				continue
			}
		}
		a, err := validate.Analyze(p)
		if err != nil {
			fmt.Fprintf(w, "=== %s ===\n%v\n\n", target, err)
			continue
		}
		validate.WriteAnalysis(w, a)
	}
	return nil
}
