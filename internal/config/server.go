package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"Unwarp/database/postgres"
	imageApi "Unwarp/internal/api/image"
	imageHandler "Unwarp/internal/api/image/handler"
	imageRepository "Unwarp/internal/api/image/repository"
	imageService "Unwarp/internal/api/image/service"
	sessionHandler "Unwarp/internal/api/session/handler"
	sessionService "Unwarp/internal/api/session/service"
	"Unwarp/internal/middleware"
	"Unwarp/pkg/gemini"
	"Unwarp/pkg/redis"
	"Unwarp/pkg/s3"
	"Unwarp/pkg/utils"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	redisServer  redis.IRedis
	geminiClient gemini.IGemini
	s3Client     s3.ItfS3
	policy       imageApi.Policy
	sessionTTL   time.Duration
	sessions     sessionService.ISessionService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		policy:     LoadPolicy(),
		sessionTTL: SessionTTL(),
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		s.db = db
		return nil
	}
}

// WithDB uses an existing connection instead of dialing one.
func WithDB(db *sqlx.DB) ServerOption {
	return func(s *Server) error {
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithGeminiClient enables corner suggestion. A missing API key only
// disables the feature.
func WithGeminiClient() ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient()
		if errors.Is(err, gemini.ErrDisabled) {
			if s.log != nil {
				s.log.Warn("GEMINI_API_KEY not set, corner suggestion disabled")
			}
			return nil
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create Gemini client: %v", err)
			}
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func WithPolicy(policy imageApi.Policy) ServerOption {
	return func(s *Server) error {
		s.policy = policy
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Image Domain
	imageRepo := imageRepository.New(s.db, s.log)
	imageServices := imageService.NewImageService(s.log, imageRepo, s.s3Client, s.redisServer, s.geminiClient, s.utils, s.policy)
	imageHandlers := imageHandler.New(s.log, s.validator, s.middleware, imageServices, s.policy)

	// Editing Sessions
	s.sessions = sessionService.NewSessionService(s.log, imageServices, s.utils, s.sessionTTL)
	sessionHandlers := sessionHandler.New(s.log, s.validator, s.middleware, s.sessions)

	s.handlers = append(s.handlers, imageHandlers, sessionHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewCORSMiddleware())
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	router := s.engine.Group("/api")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests and releases the server's clients.
func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)

	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.geminiClient != nil {
		s.geminiClient.Close()
	}
	if s.db != nil {
		if dbErr := s.db.Close(); dbErr != nil && err == nil {
			err = dbErr
		}
	}
	return err
}
