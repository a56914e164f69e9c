package scanHandler

import (
	"strconv"
	"time"

	"Shelfscan/internal/api/scan"
	contextPkg "Shelfscan/pkg/context"
	"Shelfscan/pkg/handlerUtil"
	"Shelfscan/pkg/log"
	"Shelfscan/pkg/provider"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *ScanHandler) AnalyzeShelf(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 90*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing shelf analysis request")

	image, userID, opts, err := h.parseShelfRequest(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_shelf_request")
	}

	result, err := h.scanService.AnalyzeShelf(c, userID, image, opts)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze_shelf")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":     requestID,
			"path":           ctx.Path(),
			"total_detected": result.Stats.TotalDetected,
			"in_collection":  result.Stats.InCollection,
		}).Info("Shelf analysis successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, scan.ShelfScanResponse{
			Data: result,
		})
	}
}

func (h *ScanHandler) AnalyzeBook(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 45*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing single book analysis request")

	var image []byte
	var opts provider.AnalyzeOptions

	file, err := ctx.FormFile("image")
	if err == nil {
		if err := h.utils.ValidateImageFile(file); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
		}

		fileContent, err := file.Open()
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_file")
		}
		defer fileContent.Close()

		image, err = h.utils.ReadFileBytes(fileContent)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_file")
		}

		opts.CompressionQuality, _ = strconv.Atoi(ctx.FormValue("compression_quality"))
	} else {
		var req scan.AnalyzeBookRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		image, err = h.utils.DecodeBase64Image(req.ImageBase64)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "decode_base64")
		}

		opts.CompressionQuality = req.CompressionQuality
	}

	result, err := h.scanService.AnalyzeSingleBook(c, image, opts)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze_book")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"title":      result.Title,
		}).Info("Single book analysis successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, scan.BookScanResponse{
			Data: result,
		})
	}
}

func (h *ScanHandler) ConfirmBooks(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req scan.ConfirmBooksRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	createdIDs, err := h.scanService.ConfirmBooks(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "confirm_books")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"count":      len(createdIDs),
	}).Info("Detections confirmed into collection")

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, scan.ConfirmBooksResponse{
		CreatedIDs: createdIDs,
	})
}

// parseShelfRequest accepts either a multipart upload ("image" field plus
// form values) or a JSON body with a base64 payload.
func (h *ScanHandler) parseShelfRequest(ctx *fiber.Ctx) ([]byte, string, provider.AnalyzeOptions, error) {
	var opts provider.AnalyzeOptions

	file, err := ctx.FormFile("image")
	if err == nil {
		if err := h.utils.ValidateImageFile(file); err != nil {
			return nil, "", opts, err
		}

		fileContent, err := file.Open()
		if err != nil {
			return nil, "", opts, err
		}
		defer fileContent.Close()

		image, err := h.utils.ReadFileBytes(fileContent)
		if err != nil {
			return nil, "", opts, err
		}

		opts.DetectionThreshold, _ = strconv.ParseFloat(ctx.FormValue("detection_threshold"), 64)
		opts.CompressionQuality, _ = strconv.Atoi(ctx.FormValue("compression_quality"))

		return image, ctx.FormValue("user_id"), opts, nil
	}

	var req scan.AnalyzeShelfRequest
	if err := ctx.BodyParser(&req); err != nil {
		return nil, "", opts, scan.ErrNoImageProvided
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, "", opts, err
	}

	image, err := h.utils.DecodeBase64Image(req.ImageBase64)
	if err != nil {
		return nil, "", opts, err
	}

	opts.DetectionThreshold = req.DetectionThreshold
	opts.CompressionQuality = req.CompressionQuality

	return image, req.UserID, opts, nil
}
