package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/chetanK28/PlanningPoker-Backend/internal/engine"
	"github.com/chetanK28/PlanningPoker-Backend/internal/router"
	"github.com/chetanK28/PlanningPoker-Backend/internal/server/middleware"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/config"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/state"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/state/statemanager"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/transport"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	eventRouter  *router.EventRouter
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) (*App, error) {
	registry := engine.New(logger)
	registry.RegisterCore()
	pipelines, err := config.CompilePipelines(cfg, registry)
	if err != nil {
		return nil, err
	}

	stateManager := statemanager.NewInMemoryManager(logger)
	eventRouter := router.NewEventRouter(logger, stateManager, pipelines, cfg.Router.QueueSize)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		eventRouter:  eventRouter,
		config:       cfg,
		ctx:          rootCtx,
	}

	app.http = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}
	return app, nil
}

func (a *App) routes() http.Handler {
	// Create a cycler function that closes over the stateManager and logger.
	connCycler := func(ip string) {
		oldest, found := a.stateManager.FindOldestConnectionByIP(ip)
		if found {
			a.logger.Info("Cycling connection: closing oldest", slog.String("ip", ip), slog.String("connID", oldest.ID.String()))
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// X-Forwarded-For is client-controlled unless a proxy in front rewrites it.
	if a.config.Server.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestMetadataMiddleware())
	r.Use(middleware.NewRequestLogger(a.logger))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORS(a.config.Server.AllowedOrigin))
		r.Get("/", a.rootHandler)
		r.Get("/health", a.healthHandler)
	})

	r.Method(http.MethodGet, "/ws", middleware.Chain(
		http.HandlerFunc(a.upgradeHandler),
		middleware.NewConnectionLimiter(
			a.logger,
			a.stateManager.CountConnectionsByIP,
			connCycler,
			a.config.Server.ConnectionLimit,
		),
	))

	return r
}

// Handler exposes the HTTP routes, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

// Start launches the event loop. Run calls it; tests that drive Handler
// directly call it themselves.
func (a *App) Start() {
	go a.eventRouter.Run(a.ctx)
}

func (a *App) Run() error {
	a.Start()
	go func() {
		a.logger.Info("Server starting",
			slog.String("addr", a.http.Addr),
			slog.String("allowedOrigin", a.config.Server.AllowedOrigin),
		)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) rootHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Planning poker server is running."))
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (a *App) acceptOptions() *websocket.AcceptOptions {
	origin := a.config.Server.AllowedOrigin
	if origin == "*" {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	// OriginPatterns match against the host only.
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	return &websocket.AcceptOptions{OriginPatterns: []string{host}}
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	var ip string
	if reqMeta != nil {
		ip = reqMeta.IP
	}
	connLogger := a.logger.With(slog.String("remoteAddr", ip))

	wsConn, err := websocket.Accept(w, r, a.acceptOptions())
	if err != nil {
		connLogger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.eventRouter.HandleMessage,
		func(id uuid.UUID, err error) {
			connLogger.Info("Connection closed, queueing room cleanup", slog.String("connID", id.String()))
			a.eventRouter.HandleDisconnect(id, err)
		},
		a.logger,
	)
	// register new connection; it is not bound to any room until join-room.
	if _, err := a.stateManager.RegisterConnection(conn, ip); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}

	connLogger.Info("Connection fully established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.stateManager.GetAllConnections() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
