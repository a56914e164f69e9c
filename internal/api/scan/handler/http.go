package scanHandler

import (
	scanService "Shelfscan/internal/api/scan/service"
	"Shelfscan/internal/middleware"
	"Shelfscan/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type ScanHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	middleware  middleware.Middleware
	scanService scanService.IScanService
	utils       utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ss scanService.IScanService,
	utils utils.IUtils,
) *ScanHandler {
	return &ScanHandler{
		log:         log,
		validator:   validator,
		middleware:  middleware,
		scanService: ss,
		utils:       utils,
	}
}

func (h *ScanHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	scan := srv.Group("/scan")
	scan.Post("/shelf", h.AnalyzeShelf)
	scan.Post("/book", h.AnalyzeBook)
	scan.Post("/confirm", h.ConfirmBooks)

	scan.Use("/shelf/ws", wsMiddleware)
	scan.Get("/shelf/ws", websocket.New(h.handleShelfWebSocket))
}
