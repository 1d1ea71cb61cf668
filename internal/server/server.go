// Package server exposes the tutor over HTTP.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/recommend"
	"github.com/abhisek/dsatutor/internal/store"
	"github.com/abhisek/dsatutor/internal/tutor"
)

// Tutor is the turn processor API.
type Tutor interface {
	ProcessTurn(ctx context.Context, userID, text string, atts []attachment.Attachment) (*tutor.Reply, error)
	ClearHistory(ctx context.Context, userID string) error
	Profile(ctx context.Context, userID string) (*tutor.Profile, error)
	Recommendations(ctx context.Context, userID string) ([]recommend.Recommendation, error)
}

// Users is the account side of the session store.
type Users interface {
	CreateUser(ctx context.Context, email, username string, roles []string) (*store.User, error)
	GetUser(ctx context.Context, userID string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	LoadHistory(ctx context.Context, userID, chatID string) ([]store.Message, error)
}

// Config holds server settings.
type Config struct {
	TurnTimeout time.Duration
	BodyLimit   int
}

// Server is the HTTP facade.
type Server struct {
	app   *fiber.App
	tutor Tutor
	users Users
	lock  TurnLock
	cfg   Config
	log   *zap.Logger
}

// New creates a Server. A nil lock uses an in-process lock.
func New(t Tutor, users Users, lock TurnLock, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("server")
	if lock == nil {
		lock = NewLocalLock()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 2 * time.Minute
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 12 << 20
	}

	s := &Server{tutor: t, users: users, lock: lock, cfg: cfg, log: log}
	s.app = fiber.New(fiber.Config{
		AppName:               "dsatutor",
		ReadTimeout:           20 * time.Second,
		WriteTimeout:          cfg.TurnTimeout + 10*time.Second,
		IdleTimeout:           60 * time.Second,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          errorHandler(log),
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	users := api.Group("/users")
	users.Post("/", s.createUser)
	users.Get("/", s.findUser)
	users.Get("/:id", s.getUser)
	users.Post("/:id/turns", s.postTurn)
	users.Get("/:id/history", s.getHistory)
	users.Delete("/:id/history", s.clearHistory)
	users.Get("/:id/profile", s.getProfile)
	users.Get("/:id/recommendations", s.getRecommendations)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Info("listening", zap.String("address", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}
		s.log.Info("http request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		)
		return nil
	}
}
