// Package httpserver exposes the marketplace HTTP API on echo.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/and161185/skillmarket/internal/errs"
	"github.com/and161185/skillmarket/internal/service"
)

// Options configures the listener.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BodyLimit    string // echo size notation, e.g. "1M"
}

// Server wires services into HTTP handlers.
type Server struct {
	e     *echo.Echo
	auth  service.AuthService
	items service.ItemService
	gate  *AuthGate
	log   *zap.Logger
	addr  string
	now   func() time.Time
}

// New constructs the HTTP server and registers all routes.
func New(opts Options, auth service.AuthService, items service.ItemService, gate *AuthGate, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = errorHandler(log)
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout
	e.Server.IdleTimeout = opts.IdleTimeout

	e.Use(RequestLogger(log), Recover(log))
	if opts.BodyLimit != "" {
		e.Use(echomiddleware.BodyLimit(opts.BodyLimit))
	}

	s := &Server{e: e, auth: auth, items: items, gate: gate, log: log, addr: opts.Addr, now: time.Now}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.GET("/health", s.health)

	a := s.e.Group("/auth")
	a.POST("/register", s.register)
	a.POST("/login", s.login)
	a.POST("/logout", s.logout)
	a.GET("/me", s.me, s.gate.Middleware)

	it := s.e.Group("/items")
	it.POST("", s.createItem, s.gate.Middleware)
	it.GET("/:slug", s.getItem)
	it.POST("/:slug/like", s.toggleLike, s.gate.Middleware)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Serve listens until Shutdown is called.
func (s *Server) Serve() error {
	s.log.Info("http listening", zap.String("addr", s.addr))
	if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "ts": s.now().UTC().Format(time.RFC3339)})
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tok, u, err := s.auth.Register(c.Request().Context(), req.Email, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{User: toUserResponse(u), Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tok, u, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		}
		return err
	}
	return c.JSON(http.StatusOK, authResponse{User: toUserResponse(u), Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt})
}

// logout is stateless: the client discards its token.
func (s *Server) logout(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) me(c echo.Context) error {
	id, ok := IdentityFromCtx(c.Request().Context())
	if !ok {
		return errs.ErrUnauthorized
	}
	u, err := s.auth.Me(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]userResponse{"user": toUserResponse(*u)})
}

func (s *Server) createItem(c echo.Context) error {
	id, ok := IdentityFromCtx(c.Request().Context())
	if !ok {
		return errs.ErrUnauthorized
	}
	var req createItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	it, err := s.items.Create(c.Request().Context(), id.UserID, req.toModel())
	if err != nil {
		return err
	}
	it.AuthorUsername = id.Username
	return c.JSON(http.StatusCreated, map[string]itemResponse{"item": toItemResponse(*it)})
}

func (s *Server) getItem(c echo.Context) error {
	it, err := s.items.Get(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]itemResponse{"item": toItemResponse(*it)})
}

func (s *Server) toggleLike(c echo.Context) error {
	id, ok := IdentityFromCtx(c.Request().Context())
	if !ok {
		return errs.ErrUnauthorized
	}
	st, err := s.items.ToggleLike(c.Request().Context(), id.UserID, c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, likeResponse{Liked: st.Liked, Likes: st.Likes})
}

func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", errs.ErrValidation)
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	return c.Validate(dst)
}
