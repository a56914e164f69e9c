package gemini

import (
	"context"
	"os"
	"strings"

	"Shelfscan/pkg/provider"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

// New builds the Gemini adapter from the environment. The genai client is
// created once here and reused for every request.
func New(pre provider.Preprocessor) (provider.Provider, error) {
	cfg := provider.Config{
		APIKey:          os.Getenv("GEMINI_API_KEY"),
		Model:           os.Getenv("GEMINI_MODEL_NAME"),
		MaxOutputTokens: 4096,
		Temperature:     0.1,
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	if cfg.APIKey == "" {
		return nil, provider.NewError(provider.CodeInvalidApiKey, "gemini", "GEMINI_API_KEY is not set", nil)
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, provider.ClassifyError("gemini", err)
	}

	caps := provider.Capabilities{
		MaxImageSizeMB:           20,
		SupportsVision:           true,
		SupportsBatchProcessing:  true,
		SupportsStructuredOutput: true,
		RateLimitPerMinute:       60,
	}

	invoke := func(ctx context.Context, payload provider.Payload, prompt string) (string, error) {
		model := client.GenerativeModel(cfg.Model)
		model.SetTemperature(cfg.Temperature)
		model.SetMaxOutputTokens(int32(cfg.MaxOutputTokens))
		model.ResponseMIMEType = "application/json"

		img := genai.ImageData(imageFormat(payload.MimeType), payload.Data)
		res, err := model.GenerateContent(ctx, genai.Text(prompt), img)
		if err != nil {
			return "", err
		}

		if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
			return "", nil
		}

		text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			return "", provider.NewError(provider.CodeParsingError, "gemini", "unexpected response part type", nil)
		}

		return string(text), nil
	}

	return provider.NewClient("gemini", cfg, caps, pre, invoke)
}

// imageFormat converts a MIME type to the bare format genai expects.
func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(mimeType, "image/")
	if format == "" || format == mimeType {
		return "jpeg"
	}
	return format
}
