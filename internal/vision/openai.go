package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIBackend transcribes page images through the OpenAI chat API with
// vision input. The chat API has no raw-PDF input, so this backend only
// serves per-page escalation, never the direct-document fallback.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a backend from an API key.
func NewOpenAIBackend(apiKey, model string) (*OpenAIBackend, error) {
	const op = "NewOpenAIBackend"

	if apiKey == "" {
		return nil, extract.WrapExtractError(op, ErrMissingCredentials, "OPENAI_API_KEY is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIBackend{client: openai.NewClient(apiKey), model: model}, nil
}

// NewOpenAIBackendWithClient creates a backend with an explicit client (for
// testing).
func NewOpenAIBackendWithClient(client *openai.Client, model string) *OpenAIBackend {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIBackend{client: client, model: model}
}

func (b *OpenAIBackend) Name() string  { return "openai" }
func (b *OpenAIBackend) Model() string { return b.model }

func (b *OpenAIBackend) SupportsDocuments() bool { return false }

// TranscribeImage sends the page as an inline data URL with the
// transcription prompt for the text type.
func (b *OpenAIBackend) TranscribeImage(ctx context.Context, image []byte, textType extract.TextType) (string, error) {
	const op = "OpenAIBackend.TranscribeImage"

	dataURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(image))

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: imagePrompt(textType),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", extract.WrapExtractError(op, err, "OpenAI request failed")
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", extract.WrapExtractError(op, ErrEmptyResponse, fmt.Sprintf("model %s", b.model))
	}
	return resp.Choices[0].Message.Content, nil
}

// TranscribeDocument is not supported for this provider.
func (b *OpenAIBackend) TranscribeDocument(ctx context.Context, _ []byte) (string, error) {
	return "", extract.WrapExtractError("OpenAIBackend.TranscribeDocument",
		fmt.Errorf("openai chat API does not accept raw documents"), "")
}
