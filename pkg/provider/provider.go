package provider

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

type ReadabilityStatus string

const (
	ReadabilityClear      ReadabilityStatus = "clear"
	ReadabilityPartial    ReadabilityStatus = "partial"
	ReadabilityUncertain  ReadabilityStatus = "uncertain"
	ReadabilityUnreadable ReadabilityStatus = "unreadable"
)

// BoundingBox is normalized to [0,1] relative to image dimensions, origin
// top-left. Every component is clamped before being exposed to callers.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectedBook is one raw detection. Created once by the normalizer and
// immutable afterward. A nil Confidence means the backend reported none.
type DetectedBook struct {
	Title             string            `json:"title"`
	Author            string            `json:"author,omitempty"`
	ISBN              string            `json:"isbn,omitempty"`
	Position          BoundingBox       `json:"position"`
	Confidence        *float64          `json:"confidence,omitempty"`
	ReadabilityStatus ReadabilityStatus `json:"readability_status,omitempty"`
}

type SingleBookResult struct {
	Title             string            `json:"title"`
	Author            string            `json:"author,omitempty"`
	ISBN              string            `json:"isbn,omitempty"`
	Publisher         string            `json:"publisher,omitempty"`
	Year              string            `json:"year,omitempty"`
	Category          string            `json:"category,omitempty"`
	Language          string            `json:"language,omitempty"`
	Confidence        *float64          `json:"confidence,omitempty"`
	ReadabilityStatus ReadabilityStatus `json:"readability_status,omitempty"`
}

type ImageMetadata struct {
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	SizeBytes  int    `json:"size_bytes,omitempty"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

type ShelfAnalysisResult struct {
	Books         []DetectedBook `json:"books"`
	TotalDetected int            `json:"total_detected"`
	ImageMetadata *ImageMetadata `json:"image_metadata,omitempty"`
}

// Config is supplied at adapter construction and immutable for the adapter's
// lifetime. Adapters are shared across concurrent requests and must stay
// stateless beyond it.
type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float32
}

type Capabilities struct {
	MaxImageSizeMB           int  `json:"max_image_size_mb"`
	SupportsVision           bool `json:"supports_vision"`
	SupportsBatchProcessing  bool `json:"supports_batch_processing"`
	SupportsStructuredOutput bool `json:"supports_structured_output"`
	RateLimitPerMinute       int  `json:"rate_limit_per_minute"`
}

// AnalyzeOptions tunes one analysis call. DetectionThreshold is advisory for
// the adapter; it is enforced downstream when building the enriched list.
type AnalyzeOptions struct {
	CompressionQuality int
	DetectionThreshold float64
	MaxDimension       int
}

func (o AnalyzeOptions) withDefaults() AnalyzeOptions {
	if o.CompressionQuality <= 0 || o.CompressionQuality > 100 {
		o.CompressionQuality = 85
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = 2048
	}
	return o
}

type Provider interface {
	Name() string
	AnalyzeShelf(ctx context.Context, image []byte, opts AnalyzeOptions) (*ShelfAnalysisResult, error)
	AnalyzeSingleBook(ctx context.Context, image []byte, opts AnalyzeOptions) (*SingleBookResult, error)
	ValidateConfig() error
	Capabilities() Capabilities
}

// Preprocessor resizes and recompresses an image payload before transmission.
// Implemented outside this package; pkg/utils supplies the default.
type Preprocessor interface {
	OptimizeImage(data []byte, maxDimension, quality int) ([]byte, error)
}

// Payload is the prepared image handed to a backend-specific invoke hook.
type Payload struct {
	Data     []byte
	MimeType string
}

// InvokeFunc is the backend-specific hook: one blocking network round-trip
// carrying the prepared image and the fixed prompt, returning raw model text.
type InvokeFunc func(ctx context.Context, payload Payload, prompt string) (string, error)

// Client is the shared template-method flow every adapter plugs into:
// validate, preprocess, invoke, normalize. Adapters differ only in their
// invoke hook and capabilities.
type Client struct {
	name   string
	cfg    Config
	caps   Capabilities
	pre    Preprocessor
	invoke InvokeFunc
}

// NewClient validates the configuration eagerly so a missing credential fails
// at construction, not on the first request.
func NewClient(name string, cfg Config, caps Capabilities, pre Preprocessor, invoke InvokeFunc) (*Client, error) {
	c := &Client{
		name:   name,
		cfg:    cfg,
		caps:   caps,
		pre:    pre,
		invoke: invoke,
	}
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Capabilities() Capabilities {
	return c.caps
}

func (c *Client) ValidateConfig() error {
	if c.cfg.APIKey == "" {
		return NewError(CodeInvalidApiKey, c.name, "missing API key", nil)
	}
	if c.cfg.Model == "" {
		return NewError(CodeInvalidApiKey, c.name, "missing model name", nil)
	}
	return nil
}

func (c *Client) AnalyzeShelf(ctx context.Context, img []byte, opts AnalyzeOptions) (*ShelfAnalysisResult, error) {
	payload, meta, err := c.prepare(img, opts)
	if err != nil {
		return nil, err
	}

	raw, err := c.invoke(ctx, payload, ShelfPrompt())
	if err != nil {
		return nil, ClassifyError(c.name, err)
	}

	result, err := normalizeShelfResponse(c.name, raw)
	if err != nil {
		return nil, err
	}
	result.ImageMetadata = meta

	return result, nil
}

func (c *Client) AnalyzeSingleBook(ctx context.Context, img []byte, opts AnalyzeOptions) (*SingleBookResult, error) {
	payload, _, err := c.prepare(img, opts)
	if err != nil {
		return nil, err
	}

	raw, err := c.invoke(ctx, payload, SingleBookPrompt())
	if err != nil {
		return nil, ClassifyError(c.name, err)
	}

	return normalizeSingleBookResponse(c.name, raw)
}

func (c *Client) prepare(img []byte, opts AnalyzeOptions) (Payload, *ImageMetadata, error) {
	opts = opts.withDefaults()

	if len(img) == 0 {
		return Payload{}, nil, NewError(CodeInvalidImageFormat, c.name, "empty image payload", nil)
	}

	maxBytes := c.caps.MaxImageSizeMB * 1024 * 1024
	if maxBytes > 0 && len(img) > maxBytes {
		return Payload{}, nil, NewError(CodeInvalidImageFormat, c.name, "image exceeds backend size limit", nil)
	}

	mimeType := http.DetectContentType(img)
	if !strings.HasPrefix(mimeType, "image/") {
		return Payload{}, nil, NewError(CodeInvalidImageFormat, c.name, "payload is not an image", nil)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return Payload{}, nil, NewError(CodeInvalidImageFormat, c.name, "malformed image data", err)
	}

	data := img
	if c.pre != nil {
		optimized, err := c.pre.OptimizeImage(img, opts.MaxDimension, opts.CompressionQuality)
		if err != nil {
			return Payload{}, nil, NewError(CodeInvalidImageFormat, c.name, "failed to preprocess image", err)
		}
		data = optimized
		mimeType = http.DetectContentType(data)
	}

	meta := &ImageMetadata{
		Width:     cfg.Width,
		Height:    cfg.Height,
		MimeType:  mimeType,
		SizeBytes: len(data),
	}

	return Payload{Data: data, MimeType: mimeType}, meta, nil
}
