package vision

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiBackend transcribes through a Gemini multimodal model on Vertex
// AI. It handles page images and raw PDFs natively, which makes it the
// preferred direct-document provider.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a backend against the given project and region
// using application default credentials.
func NewGeminiBackend(ctx context.Context, projectID, region, model string) (*GeminiBackend, error) {
	const op = "NewGeminiBackend"

	if projectID == "" {
		return nil, extract.WrapExtractError(op, ErrMissingCredentials, "GOOGLE_PROJECT_ID is required for Gemini")
	}
	if region == "" {
		region = "us-central1"
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, extract.WrapExtractError(op, err, "could not create Vertex AI client")
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) Name() string  { return "gemini" }
func (b *GeminiBackend) Model() string { return b.model }

func (b *GeminiBackend) SupportsDocuments() bool { return true }

// TranscribeImage sends one page image with the transcription prompt for
// the text type.
func (b *GeminiBackend) TranscribeImage(ctx context.Context, image []byte, textType extract.TextType) (string, error) {
	const op = "GeminiBackend.TranscribeImage"

	return b.generate(ctx, op,
		genai.Blob{MIMEType: "image/png", Data: image},
		genai.Text(imagePrompt(textType)),
	)
}

// TranscribeDocument sends the raw PDF. Gemini accepts PDFs as inline
// blobs, no rasterization needed.
func (b *GeminiBackend) TranscribeDocument(ctx context.Context, document []byte) (string, error) {
	const op = "GeminiBackend.TranscribeDocument"

	if err := validatePDF(document); err != nil {
		return "", extract.WrapExtractError(op, err, "")
	}
	return b.generate(ctx, op,
		genai.Blob{MIMEType: "application/pdf", Data: document},
		genai.Text(documentPrompt),
	)
}

func (b *GeminiBackend) generate(ctx context.Context, op string, parts ...genai.Part) (string, error) {
	model := b.client.GenerativeModel(b.model)
	model.GenerationConfig = genai.GenerationConfig{
		// Transcription wants determinism, not creativity.
		Temperature: genai.Ptr[float32](0.0),
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", extract.WrapExtractError(op, err, "Gemini request failed")
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", extract.WrapExtractError(op, ErrEmptyResponse, fmt.Sprintf("model %s", b.model))
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// Close closes the underlying client.
func (b *GeminiBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
