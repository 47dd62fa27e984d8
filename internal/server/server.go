package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/authz"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/server/api"
	"github.com/looplj/todohub/internal/server/biz"
	"github.com/looplj/todohub/internal/server/dependencies"
	"github.com/looplj/todohub/internal/server/middleware"
)

func New(config Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())

	return &Server{
		Config: config,
		Engine: engine,
	}
}

type Server struct {
	*gin.Engine

	Config Config

	mu     sync.Mutex
	server *http.Server
	addr   string
}

// Run listens on the configured host and port and serves until Shutdown.
func (srv *Server) Run() error {
	listener, err := net.Listen("tcp", net.JoinHostPort(srv.Config.Host, strconv.Itoa(srv.Config.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	httpServer := &http.Server{
		Handler:           srv.Engine,
		ReadTimeout:       srv.Config.ReadTimeout,
		ReadHeaderTimeout: srv.Config.ReadTimeout,
		WriteTimeout:      srv.Config.RequestTimeout,
	}

	srv.mu.Lock()
	srv.server = httpServer
	srv.addr = listener.Addr().String()
	srv.mu.Unlock()

	log.Info(context.Background(), "run server", log.String("name", srv.Config.Name), log.String("addr", srv.addr))

	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Addr is the address the server listens on, empty before Run.
func (srv *Server) Addr() string {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	return srv.addr
}

func (srv *Server) Shutdown(ctx context.Context) error {
	srv.mu.Lock()
	httpServer := srv.server
	srv.mu.Unlock()

	if httpServer == nil {
		return nil
	}

	return httpServer.Shutdown(ctx)
}

// NewContextResolver resolves the auth user of model requests from sessions and organization members.
func NewContextResolver(sessions *biz.SessionService, organizations *biz.OrganizationService) *authz.ContextResolver {
	return authz.NewContextResolver(sessions, organizations)
}

func Run(opts ...fx.Option) {
	constructors := []any{
		NewContextResolver,
		New,
	}

	app := fx.New(
		append([]fx.Option{
			fx.NopLogger,
			fx.Provide(constructors...),
			dependencies.Module,
			biz.Module,
			api.Module,
			fx.Invoke(func(lc fx.Lifecycle, logger *log.Logger) {
				log.SetGlobalLogger(logger)
				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						_ = logger.Sync()
						return nil
					},
				})
			}),
			fx.Invoke(SetupRoutes),
		}, opts...)...,
	)
	app.Run()
}
