package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"Shelfscan/pkg/provider"

	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o"

// New builds the OpenAI adapter from the environment. Vision calls go through
// the chat completions API with an inline data URL and strict JSON response
// format.
func New(pre provider.Preprocessor) (provider.Provider, error) {
	cfg := provider.Config{
		APIKey:          os.Getenv("OPENAI_API_KEY"),
		Model:           os.Getenv("OPENAI_VISION_MODEL"),
		MaxOutputTokens: 4096,
		Temperature:     0.1,
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	if cfg.APIKey == "" {
		return nil, provider.NewError(provider.CodeInvalidApiKey, "openai", "OPENAI_API_KEY is not set", nil)
	}

	client := openai.NewClient(cfg.APIKey)

	caps := provider.Capabilities{
		MaxImageSizeMB:           20,
		SupportsVision:           true,
		SupportsBatchProcessing:  true,
		SupportsStructuredOutput: true,
		RateLimitPerMinute:       500,
	}

	invoke := func(ctx context.Context, payload provider.Payload, prompt string) (string, error) {
		dataURL := fmt.Sprintf("data:%s;base64,%s", payload.MimeType, base64.StdEncoding.EncodeToString(payload.Data))

		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: prompt,
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL: dataURL,
							},
						},
					},
				},
			},
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxOutputTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return "", translateAPIError(err)
		}

		if len(resp.Choices) == 0 {
			return "", nil
		}

		choice := resp.Choices[0]
		if choice.Message.Refusal != "" {
			return "", provider.NewError(provider.CodeParsingError, "openai", "backend refused the request: "+choice.Message.Refusal, nil)
		}

		return choice.Message.Content, nil
	}

	return provider.NewClient("openai", cfg, caps, pre, invoke)
}

func translateAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return provider.ErrorFromStatus("openai", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return err
}
