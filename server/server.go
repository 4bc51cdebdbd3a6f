package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/auth"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/config"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/dashboard"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/herr"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/identity"
	mw "github.com/SghaierFiras/armada-analytics-hub-sub001/middleware"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/route"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/session"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const jwtIssuer = "armada-analytics"

// Deps are the collaborators the HTTP handler is assembled from.
type Deps struct {
	Sessions       *session.Manager
	Provider       auth.Provider
	Pages          fs.FS
	PageNames      []string
	IsProd         bool
	RateLimitRPS   float64
	RateLimitBurst int
}

type Server struct {
	store    store.Store
	http     *http.Server
	handler  http.Handler
	provider string
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	st, err := store.New(ctx, store.Config{
		Driver:        cfg.SessionStore,
		SQLitePath:    cfg.SQLitePath,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating session store: %w", err)
	}
	if sq, ok := st.(*store.SQLite); ok {
		n, err := sq.DeleteExpired(ctx, time.Now())
		if err != nil {
			slog.Warn("error pruning expired sessions", "err", err)
		} else if n > 0 {
			slog.Info("pruned expired sessions", "count", n)
		}
	}

	var codec identity.Codec = identity.JSONCodec{}
	if cfg.IdentityCodec == "jwt" {
		codec = identity.NewJWTCodec(cfg.SessionSecret, jwtIssuer)
	}

	sessions := session.NewManager(st, codec, session.Options{
		Secret: []byte(cfg.SessionSecret),
		TTL:    session.DefaultTTL,
		Secure: cfg.IsProd(),
	})

	slack, err := auth.NewSlack(auth.SlackConfig{
		ClientID:     cfg.SlackClientID,
		ClientSecret: cfg.SlackClientSecret,
		RedirectURL:  cfg.SlackCallbackURL,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	handler := NewHandler(Deps{
		Sessions:       sessions,
		Provider:       slack,
		Pages:          os.DirFS(cfg.DashboardDir),
		PageNames:      cfg.DashboardPages,
		IsProd:         cfg.IsProd(),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	return &Server{
		store:    st,
		handler:  handler,
		provider: slack.Name(),
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	slog.Info("Server is listening", "addr", s.http.Addr, "provider", s.provider)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then closes the session store.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.http.Shutdown(ctx)
	storeErr := s.store.Close()
	return errors.Join(httpErr, storeErr)
}

// NewHandler builds the route table and wraps it in the outer middleware.
func NewHandler(d Deps) http.Handler {
	authHandler := auth.NewHandler(d.Sessions, d.Provider)
	protect := mw.Protect(auth.LoginPath)

	table := route.New(mw.Session(d.Sessions), mw.Identity(d.Sessions))
	table.Get("/health", herr.Wrap(handleHealth))
	table.Get("/metrics", promhttp.Handler())
	table.Get(auth.LoginPath, herr.Wrap(authHandler.HandleLoginPage))
	table.Get("/logout", herr.Wrap(authHandler.HandleLogout))
	table.Get(auth.BeginPath, herr.Wrap(authHandler.HandleBegin))
	table.Get(auth.CallbackPath, herr.Wrap(authHandler.HandleCallback))
	table.Get("/api/auth/status", herr.Wrap(authHandler.HandleStatus))
	table.Get("/api/auth/user", herr.Wrap(authHandler.HandleUser), protect)
	dashboard.New(d.Pages, d.PageNames).Register(table, protect)
	table.NotFound(herr.NotFoundHandler())

	slog.Debug("routes registered", "routes", table.Routes())

	return mw.Chain(
		table,
		mw.Logger(),
		mw.Recover(),
		mw.SecurityHeaders(d.IsProd),
		mw.RateLimit(d.RateLimitRPS, d.RateLimitBurst),
		mw.Metrics(),
	)
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) *herr.Error {
	herr.JSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}
