package config

import (
	"Shelfscan/database/postgres"
	scanHandler "Shelfscan/internal/api/scan/handler"
	scanRepository "Shelfscan/internal/api/scan/repository"
	scanService "Shelfscan/internal/api/scan/service"
	"Shelfscan/internal/middleware"
	"Shelfscan/pkg/booklookup"
	"Shelfscan/pkg/provider"
	"Shelfscan/pkg/provider/gemini"
	"Shelfscan/pkg/provider/openai"
	redisPkg "Shelfscan/pkg/redis"
	"Shelfscan/pkg/s3"
	"Shelfscan/pkg/utils"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	db             *sqlx.DB
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	redisCache     redisPkg.ICache
	s3Client       s3.ItfS3
	visionProvider provider.Provider
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

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
		s.db = db
		return nil
	}
}

func WithRedisCache(cache redisPkg.ICache) ServerOption {
	return func(s *Server) error {
		s.redisCache = cache
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
		if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
			if s.log != nil {
				s.log.Warn("AWS credentials not set, scan archival disabled")
			}
			return nil
		}

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

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithVisionProvider registers the known vision backend factories and
// resolves the one selected by the PROVIDER env variable.
func WithVisionProvider() ServerOption {
	return func(s *Server) error {
		if s.utils == nil {
			return fmt.Errorf("utils must be initialized before the vision provider")
		}

		pre := s.utils
		provider.Register("gemini", func() (provider.Provider, error) {
			return gemini.New(pre)
		})
		provider.Register("openai", func() (provider.Provider, error) {
			return openai.New(pre)
		})

		backendType := os.Getenv("PROVIDER")
		if backendType == "" {
			backendType = "gemini"
		}

		visionProvider, err := provider.Resolve(backendType)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to resolve vision provider %q: %v", backendType, err)
			}
			return fmt.Errorf("failed to resolve vision provider: %w", err)
		}

		s.visionProvider = visionProvider
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Scan Domain
	scanRepo := scanRepository.New(s.db, s.log)
	lookup := booklookup.New(s.log, s.redisCache)
	scanServices := scanService.NewScanService(s.log, scanRepo, s.visionProvider, lookup, s.s3Client, s.utils)
	scanHandlers := scanHandler.New(s.log, s.validator, s.middleware, scanServices, s.utils)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, scanHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
