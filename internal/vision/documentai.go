package vision

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
)

// DocumentAIConfig identifies the OCR processor to use.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

// DocumentAIBackend transcribes whole PDFs through a Document AI OCR
// processor. It is document-only: per-page image escalation goes to the
// generative providers instead.
type DocumentAIBackend struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
}

// NewDocumentAIBackend creates a backend with credentials from the
// environment. The processor location determines the regional endpoint.
func NewDocumentAIBackend(ctx context.Context, config DocumentAIConfig) (*DocumentAIBackend, error) {
	const op = "NewDocumentAIBackend"

	if config.ProjectID == "" {
		return nil, extract.WrapExtractError(op, ErrMissingCredentials, "GOOGLE_PROJECT_ID is required for Document AI")
	}
	if config.ProcessorID == "" {
		return nil, extract.WrapExtractError(op, ErrMissingCredentials, "GOOGLE_PROCESSOR_ID is required for Document AI")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	opts := googleCredentialOptions()
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, extract.WrapExtractError(op, err, fmt.Sprintf("could not create Document AI client for location %s", config.Location))
	}
	return &DocumentAIBackend{client: client, config: config}, nil
}

// NewDocumentAIBackendWithClient creates a backend with an explicit client
// (for testing).
func NewDocumentAIBackendWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIBackend {
	return &DocumentAIBackend{client: client, config: config}
}

func (b *DocumentAIBackend) Name() string  { return "document-ai" }
func (b *DocumentAIBackend) Model() string { return b.config.ProcessorID }

func (b *DocumentAIBackend) SupportsDocuments() bool { return true }

// TranscribeImage is not supported; Document AI processors here are wired
// for whole-document OCR only.
func (b *DocumentAIBackend) TranscribeImage(ctx context.Context, _ []byte, _ extract.TextType) (string, error) {
	return "", extract.WrapExtractError("DocumentAIBackend.TranscribeImage",
		fmt.Errorf("document-ai does not handle single page images"), "")
}

// TranscribeDocument runs the configured OCR processor over the raw PDF.
func (b *DocumentAIBackend) TranscribeDocument(ctx context.Context, document []byte) (string, error) {
	const op = "DocumentAIBackend.TranscribeDocument"

	if err := validatePDF(document); err != nil {
		return "", extract.WrapExtractError(op, err, "")
	}

	resp, err := b.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: b.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  document,
				MimeType: "application/pdf",
			},
		},
	})
	if err != nil {
		return "", b.classifyError(op, err)
	}
	if resp.Document == nil || strings.TrimSpace(resp.Document.Text) == "" {
		return "", extract.WrapExtractError(op, ErrEmptyResponse, "")
	}
	return resp.Document.Text, nil
}

func (b *DocumentAIBackend) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		b.config.ProjectID, b.config.Location, b.config.ProcessorID)
}

func (b *DocumentAIBackend) classifyError(op string, err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return extract.WrapExtractError(op, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "NOT_FOUND"):
		return extract.WrapExtractError(op, err, fmt.Sprintf("processor not found: %s", b.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return extract.WrapExtractError(op, extract.ErrCorrupted, "document format not supported or corrupted")
	default:
		return extract.WrapExtractError(op, err, "Document AI request failed")
	}
}

// Close closes the underlying client.
func (b *DocumentAIBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
