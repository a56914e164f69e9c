package scan

import (
	"Shelfscan/pkg/provider"
)

type AnalyzeShelfRequest struct {
	ImageBase64        string  `json:"image_base64" validate:"required"`
	UserID             string  `json:"user_id"`
	DetectionThreshold float64 `json:"detection_threshold" validate:"gte=0,lte=1"`
	CompressionQuality int     `json:"compression_quality" validate:"gte=0,lte=100"`
}

type AnalyzeBookRequest struct {
	ImageBase64        string `json:"image_base64" validate:"required"`
	CompressionQuality int    `json:"compression_quality" validate:"gte=0,lte=100"`
}

type ConfirmBooksRequest struct {
	UserID string        `json:"user_id" validate:"required"`
	Books  []ConfirmBook `json:"books" validate:"required,min=1,dive"`
}

type ConfirmBook struct {
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author"`
	ISBN      string `json:"isbn"`
	CoverURL  string `json:"cover_url"`
	Publisher string `json:"publisher"`
	Year      string `json:"year"`
	Category  string `json:"category"`
}

type ExternalMetadata struct {
	CoverURL  string `json:"cover_url,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Year      string `json:"year,omitempty"`
	Category  string `json:"category,omitempty"`
	ISBN      string `json:"isbn,omitempty"`
}

// EnrichedDetectedBook augments a detection with collection membership and
// external metadata. Mutated in place only during a single enrichment pass,
// then returned to the caller as-is.
type EnrichedDetectedBook struct {
	provider.DetectedBook
	InCollection     bool              `json:"in_collection"`
	ExistingBookID   string            `json:"existing_book_id,omitempty"`
	MatchConfidence  *float64          `json:"match_confidence,omitempty"`
	ExternalMetadata *ExternalMetadata `json:"external_metadata,omitempty"`
}

type AnalysisStats struct {
	TotalDetected   int `json:"total_detected"`
	InCollection    int `json:"in_collection"`
	NotInCollection int `json:"not_in_collection"`
}

type ShelfAnalysisWithCollection struct {
	Analysis      provider.ShelfAnalysisResult `json:"analysis"`
	EnrichedBooks []EnrichedDetectedBook       `json:"enriched_books"`
	Stats         AnalysisStats                `json:"stats"`
}

// RecomputeStats derives the stats from the current enriched list. Called
// whenever the list changes, e.g. after a detection is added to the
// collection.
func (r *ShelfAnalysisWithCollection) RecomputeStats() {
	stats := AnalysisStats{TotalDetected: len(r.EnrichedBooks)}
	for _, book := range r.EnrichedBooks {
		if book.InCollection {
			stats.InCollection++
		} else {
			stats.NotInCollection++
		}
	}
	r.Stats = stats
}

// DefaultSelection returns the indexes preselected for "add all new books":
// detections not already in the collection whose title was actually read.
func (r *ShelfAnalysisWithCollection) DefaultSelection() []int {
	selection := make([]int, 0, len(r.EnrichedBooks))
	for i, book := range r.EnrichedBooks {
		if book.InCollection || book.ReadabilityStatus == provider.ReadabilityUnreadable {
			continue
		}
		selection = append(selection, i)
	}
	return selection
}

type ShelfScanResponse struct {
	Data  *ShelfAnalysisWithCollection `json:"data,omitempty"`
	Error string                       `json:"error,omitempty"`
}

type BookScanResponse struct {
	Data  *provider.SingleBookResult `json:"data,omitempty"`
	Error string                     `json:"error,omitempty"`
}

type ConfirmBooksResponse struct {
	CreatedIDs []string `json:"created_ids"`
}
