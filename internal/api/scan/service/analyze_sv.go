package scanService

import (
	"time"

	"Shelfscan/internal/api/scan"
	"Shelfscan/internal/entity"
	contextPkg "Shelfscan/pkg/context"
	"Shelfscan/pkg/log"
	"Shelfscan/pkg/provider"

	"golang.org/x/net/context"
)

type analysisPhase string

const (
	phaseAnalyzing analysisPhase = "analyzing"
	phaseMatching  analysisPhase = "matching"
	phaseEnriching analysisPhase = "enriching"
	phaseDone      analysisPhase = "done"
)

// AnalyzeShelf runs the full pipeline: backend analysis, collection matching,
// external enrichment. An analysis failure is fatal and surfaces the provider
// error as-is; matching and enrichment failures degrade the result instead of
// aborting it.
func (s *scanService) AnalyzeShelf(ctx context.Context, userID string, image []byte, opts provider.AnalyzeOptions) (*scan.ShelfAnalysisWithCollection, error) {
	requestID := contextPkg.GetRequestID(ctx)

	s.logPhase(requestID, phaseAnalyzing)
	analysis, err := s.provider.AnalyzeShelf(ctx, image, opts)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"provider":   s.provider.Name(),
			"error":      err.Error(),
		}).Error("Shelf analysis failed")
		return nil, err
	}

	s.archiveImage(requestID, image, analysis)

	s.logPhase(requestID, phaseMatching)
	existing := s.fetchCollection(ctx, userID)
	candidates := filterByThreshold(analysis.Books, opts.DetectionThreshold)
	enriched := s.matchAgainstCollection(candidates, existing)

	s.logPhase(requestID, phaseEnriching)
	s.enrichWithMetadata(ctx, enriched)

	result := &scan.ShelfAnalysisWithCollection{
		Analysis:      *analysis,
		EnrichedBooks: enriched,
	}
	result.RecomputeStats()

	s.logPhase(requestID, phaseDone)
	return result, nil
}

func (s *scanService) AnalyzeSingleBook(ctx context.Context, image []byte, opts provider.AnalyzeOptions) (*provider.SingleBookResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	result, err := s.provider.AnalyzeSingleBook(ctx, image, opts)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"provider":   s.provider.Name(),
			"error":      err.Error(),
		}).Error("Single book analysis failed")
		return nil, err
	}

	return result, nil
}

// ConfirmBooks persists the detections the caller selected after reviewing an
// analysis. One transaction: all selected books are created or none.
func (s *scanService) ConfirmBooks(ctx context.Context, req scan.ConfirmBooksRequest) ([]string, error) {
	requestID := contextPkg.GetRequestID(ctx)

	client, err := s.repo.NewClient(true)
	if err != nil {
		return nil, err
	}

	createdIDs := make([]string, 0, len(req.Books))
	for _, book := range req.Books {
		id, err := s.utils.NewULIDFromTimestamp(time.Now())
		if err != nil {
			_ = client.Rollback()
			return nil, err
		}

		if err := client.Book.CreateBook(ctx, entity.Book{
			ID:        id,
			UserID:    req.UserID,
			Title:     book.Title,
			Author:    book.Author,
			ISBN:      book.ISBN,
			CoverURL:  book.CoverURL,
			Publisher: book.Publisher,
			Year:      book.Year,
			Category:  book.Category,
		}); err != nil {
			_ = client.Rollback()
			return nil, err
		}

		createdIDs = append(createdIDs, id)
	}

	if err := client.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(log.Fields{
		"request_id": requestID,
		"user_id":    req.UserID,
		"count":      len(createdIDs),
	}).Info("Confirmed detections added to collection")

	return createdIDs, nil
}

// fetchCollection reads the caller's existing records. A storage failure
// degrades matching rather than failing the request.
func (s *scanService) fetchCollection(ctx context.Context, userID string) []entity.Book {
	if userID == "" || s.repo == nil {
		return nil
	}

	requestID := contextPkg.GetRequestID(ctx)

	client, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Skipping collection matching: storage unavailable")
		return nil
	}

	existing, err := client.Book.GetBooksByUserID(ctx, userID)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"user_id":    userID,
			"error":      err.Error(),
		}).Warn("Skipping collection matching: failed to list books")
		return nil
	}

	return existing
}

// filterByThreshold drops detections whose reported confidence falls below
// the advisory threshold. Unknown confidence is kept: the backend admitted
// nothing, so the detection is retained and flagged by readability instead.
func filterByThreshold(books []provider.DetectedBook, threshold float64) []provider.DetectedBook {
	if threshold <= 0 {
		return books
	}

	filtered := make([]provider.DetectedBook, 0, len(books))
	for _, book := range books {
		if book.Confidence != nil && *book.Confidence < threshold {
			continue
		}
		filtered = append(filtered, book)
	}

	return filtered
}

func (s *scanService) archiveImage(requestID string, image []byte, analysis *provider.ShelfAnalysisResult) {
	if s.s3Client == nil || analysis.ImageMetadata == nil {
		return
	}

	url, err := s.s3Client.UploadImage(image, requestID+".jpg", analysis.ImageMetadata.MimeType)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to archive analyzed image")
		return
	}

	analysis.ImageMetadata.ArchiveURL = url
}

func (s *scanService) logPhase(requestID string, phase analysisPhase) {
	s.log.WithFields(log.Fields{
		"request_id": requestID,
		"phase":      string(phase),
	}).Debug("Shelf analysis phase")
}
