package provider

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Backend output is untyped JSON embedded in free text. It is parsed into the
// loose shapes below and coerced into the strict schema at this boundary;
// backend field types are never trusted directly.

type looseShelfResponse struct {
	Books   []looseBook `json:"books"`
	Refusal string      `json:"refusal"`
}

type looseBook struct {
	Title      string        `json:"title"`
	Author     string        `json:"author"`
	ISBN       string        `json:"isbn"`
	Position   loosePosition `json:"position"`
	Confidence interface{}   `json:"confidence"`
}

type loosePosition struct {
	X      interface{} `json:"x"`
	Y      interface{} `json:"y"`
	Width  interface{} `json:"width"`
	Height interface{} `json:"height"`
}

type looseSingleBook struct {
	Title      string      `json:"title"`
	Author     string      `json:"author"`
	ISBN       string      `json:"isbn"`
	Publisher  string      `json:"publisher"`
	Year       interface{} `json:"year"`
	Category   string      `json:"category"`
	Language   string      `json:"language"`
	Confidence interface{} `json:"confidence"`
	Refusal    string      `json:"refusal"`
}

var readabilityPrefixes = []struct {
	prefix string
	status ReadabilityStatus
}{
	{"[partial]", ReadabilityPartial},
	{"[uncertain]", ReadabilityUncertain},
	{"[unreadable]", ReadabilityUnreadable},
}

func normalizeShelfResponse(providerName, raw string) (*ShelfAnalysisResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, NewError(CodeModelUnavailable, providerName, "backend returned no content", nil)
	}

	jsonStr, err := extractJSONObject(raw)
	if err != nil {
		return nil, NewError(CodeParsingError, providerName, "no JSON object in backend response", err)
	}

	var loose looseShelfResponse
	if err := json.Unmarshal([]byte(jsonStr), &loose); err != nil {
		return nil, NewError(CodeParsingError, providerName, "malformed JSON in backend response", err)
	}

	if loose.Refusal != "" {
		return nil, NewError(CodeParsingError, providerName, "backend refused the request: "+loose.Refusal, nil)
	}

	books := make([]DetectedBook, 0, len(loose.Books))
	for _, lb := range loose.Books {
		book, ok := normalizeDetectedBook(providerName, lb)
		if !ok {
			continue
		}
		books = append(books, book)
	}

	return &ShelfAnalysisResult{
		Books:         books,
		TotalDetected: len(books),
	}, nil
}

func normalizeDetectedBook(providerName string, lb looseBook) (DetectedBook, bool) {
	title, status := extractReadability(providerName, lb.Title)
	author, _ := extractReadability(providerName, lb.Author)

	// A marker-only title survives as an empty-title unreadable detection;
	// an empty title without a marker is a contract violation and dropped.
	if title == "" && status != ReadabilityUnreadable {
		logrus.WithFields(logrus.Fields{
			"provider":  providerName,
			"raw_title": lb.Title,
		}).Warn("Dropping detection with empty title")
		return DetectedBook{}, false
	}

	return DetectedBook{
		Title:             title,
		Author:            author,
		ISBN:              strings.TrimSpace(lb.ISBN),
		Position:          clampBoundingBox(lb.Position),
		Confidence:        coerceConfidence(lb.Confidence),
		ReadabilityStatus: status,
	}, true
}

func normalizeSingleBookResponse(providerName, raw string) (*SingleBookResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, NewError(CodeModelUnavailable, providerName, "backend returned no content", nil)
	}

	jsonStr, err := extractJSONObject(raw)
	if err != nil {
		return nil, NewError(CodeParsingError, providerName, "no JSON object in backend response", err)
	}

	var loose looseSingleBook
	if err := json.Unmarshal([]byte(jsonStr), &loose); err != nil {
		return nil, NewError(CodeParsingError, providerName, "malformed JSON in backend response", err)
	}

	if loose.Refusal != "" {
		return nil, NewError(CodeParsingError, providerName, "backend refused the request: "+loose.Refusal, nil)
	}

	title, status := extractReadability(providerName, loose.Title)
	author, _ := extractReadability(providerName, loose.Author)

	if title == "" && status != ReadabilityUnreadable {
		return nil, NewError(CodeParsingError, providerName, "backend returned no title", nil)
	}

	return &SingleBookResult{
		Title:             title,
		Author:            author,
		ISBN:              strings.TrimSpace(loose.ISBN),
		Publisher:         strings.TrimSpace(loose.Publisher),
		Year:              coerceString(loose.Year),
		Category:          strings.TrimSpace(loose.Category),
		Language:          strings.TrimSpace(loose.Language),
		Confidence:        coerceConfidence(loose.Confidence),
		ReadabilityStatus: status,
	}, nil
}

// extractJSONObject locates the outermost JSON object in free-form model
// output, which may wrap it in prose or markdown fences.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errors.New("cannot find valid JSON in response")
	}
	return raw[start : end+1], nil
}

// extractReadability strips exactly one leading bracket marker and returns the
// cleaned text with its readability status. A flagged detection is never
// upgraded back to clear. Unrecognized bracket-like prefixes are logged for
// prompt-contract monitoring.
func extractReadability(providerName, raw string) (string, ReadabilityStatus) {
	text := strings.TrimSpace(raw)

	for _, p := range readabilityPrefixes {
		if strings.HasPrefix(text, p.prefix) {
			return strings.TrimLeft(strings.TrimPrefix(text, p.prefix), " "), p.status
		}
	}

	if strings.HasPrefix(text, "[") && strings.Contains(text, "]") {
		logrus.WithFields(logrus.Fields{
			"provider": providerName,
			"raw_text": text,
		}).Warn("Unrecognized bracket prefix in backend output")
	}

	return text, ReadabilityClear
}

func clampBoundingBox(p loosePosition) BoundingBox {
	return BoundingBox{
		X:      clamp01(coerceFloat(p.X)),
		Y:      clamp01(coerceFloat(p.Y)),
		Width:  clamp01(coerceFloat(p.Width)),
		Height: clamp01(coerceFloat(p.Height)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// coerceConfidence distinguishes missing confidence (nil) from a reported
// one; a missing value must not default to 1.0.
func coerceConfidence(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f := clamp01(coerceFloat(v))
	return &f
}

func coerceFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func coerceString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatInt(int64(s), 10)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
