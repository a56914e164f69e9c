package scanService

import (
	"strings"
	"unicode"

	"Shelfscan/internal/api/scan"
	"Shelfscan/internal/entity"
	"Shelfscan/pkg/provider"
)

const (
	titleSimilarityThreshold  = 0.8
	authorSimilarityThreshold = 0.7

	// Fixed confidence for a fuzzy-heuristic match, distinct from the
	// detection confidence reported by the backend.
	fuzzyMatchConfidence = 0.9
)

// matchAgainstCollection resolves each detection against the caller's
// existing records. Precedence per detection: exact ISBN match first, then
// normalized-title similarity with author disambiguation. Unreadable
// detections are matched on whatever title text survived extraction.
func (s *scanService) matchAgainstCollection(detections []provider.DetectedBook, existing []entity.Book) []scan.EnrichedDetectedBook {
	enriched := make([]scan.EnrichedDetectedBook, 0, len(detections))

	for _, detection := range detections {
		book := scan.EnrichedDetectedBook{DetectedBook: detection}

		if matched := matchOne(detection, existing); matched != nil {
			confidence := fuzzyMatchConfidence
			book.InCollection = true
			book.ExistingBookID = matched.ID
			book.MatchConfidence = &confidence
		}

		enriched = append(enriched, book)
	}

	return enriched
}

func matchOne(detection provider.DetectedBook, existing []entity.Book) *entity.Book {
	// ISBN short-circuits every other comparison.
	if detection.ISBN != "" {
		for i := range existing {
			if existing[i].ISBN != "" && existing[i].ISBN == detection.ISBN {
				return &existing[i]
			}
		}
	}

	detTitle := normalizeForMatch(detection.Title)
	if detTitle == "" {
		return nil
	}
	detAuthor := normalizeForMatch(detection.Author)

	var best *entity.Book
	var bestSim float64

	for i := range existing {
		titleSim := similarity(detTitle, normalizeForMatch(existing[i].Title))
		if titleSim <= titleSimilarityThreshold {
			continue
		}

		// When both sides carry an author, it must agree; a missing author
		// on either side leaves the title match sufficient.
		existingAuthor := normalizeForMatch(existing[i].Author)
		if detAuthor != "" && existingAuthor != "" {
			if similarity(detAuthor, existingAuthor) <= authorSimilarityThreshold {
				continue
			}
		}

		if best == nil || titleSim > bestSim {
			best = &existing[i]
			bestSim = titleSim
		}
	}

	return best
}

// normalizeForMatch case-folds, strips punctuation and collapses whitespace.
// Applied identically to detected and stored fields.
func normalizeForMatch(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var builder strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			builder.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(builder.String()), " ")
}

// similarity is a normalized Levenshtein ratio in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}

	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = minOf(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

func minOf(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
