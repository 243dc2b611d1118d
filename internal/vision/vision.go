// Package vision implements the cloud transcription backends. Each backend
// satisfies extract.CloudBackend; which ones get constructed and in what
// order is the user's provider preference, resolved in config.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
)

// ErrMissingCredentials is returned when no usable credentials are found in
// the environment.
var ErrMissingCredentials = errors.New("missing cloud credentials")

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("provider returned no text")

// MaxDocumentBytes caps synchronous document uploads. Providers reject
// larger payloads anyway; failing locally gives a clearer error.
const MaxDocumentBytes = 20 * 1024 * 1024

// googleCredentialOptions resolves Google credentials the same way for
// every Google-backed provider: inline JSON first, then a credentials file,
// then application default credentials.
func googleCredentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

func validatePDF(data []byte) error {
	if len(data) > MaxDocumentBytes {
		return fmt.Errorf("document too large for synchronous processing: %d bytes", len(data))
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return fmt.Errorf("not a PDF document")
	}
	return nil
}

// VisionBackend transcribes through the Cloud Vision API. It handles both
// page images and whole PDFs, so it participates in per-page escalation and
// the direct-document fallback.
type VisionBackend struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionBackend creates a backend with credentials from the
// environment.
func NewVisionBackend(ctx context.Context) (*VisionBackend, error) {
	const op = "NewVisionBackend"

	client, err := vision.NewImageAnnotatorClient(ctx, googleCredentialOptions()...)
	if err != nil {
		return nil, extract.WrapExtractError(op, ErrMissingCredentials, err.Error())
	}
	return &VisionBackend{client: client}, nil
}

// NewVisionBackendWithClient creates a backend with an explicit client (for
// testing).
func NewVisionBackendWithClient(client *vision.ImageAnnotatorClient) *VisionBackend {
	return &VisionBackend{client: client}
}

func (b *VisionBackend) Name() string  { return "google-vision" }
func (b *VisionBackend) Model() string { return "DOCUMENT_TEXT_DETECTION" }

func (b *VisionBackend) SupportsDocuments() bool { return true }

// TranscribeImage runs document text detection on a single page image.
func (b *VisionBackend) TranscribeImage(ctx context.Context, image []byte, _ extract.TextType) (string, error) {
	const op = "VisionBackend.TranscribeImage"

	resp, err := b.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	})
	if err != nil {
		return "", extract.WrapExtractError(op, err, "Vision API call failed")
	}
	if len(resp.Responses) == 0 {
		return "", extract.WrapExtractError(op, ErrEmptyResponse, "")
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return "", extract.WrapExtractError(op, fmt.Errorf("vision API: %s", r.Error.Message), "")
	}
	if r.FullTextAnnotation == nil || strings.TrimSpace(r.FullTextAnnotation.Text) == "" {
		return "", extract.WrapExtractError(op, ErrEmptyResponse, "")
	}
	return r.FullTextAnnotation.Text, nil
}

// TranscribeDocument uploads the raw PDF for document text detection,
// bypassing local rasterization entirely.
func (b *VisionBackend) TranscribeDocument(ctx context.Context, document []byte) (string, error) {
	const op = "VisionBackend.TranscribeDocument"

	if err := validatePDF(document); err != nil {
		return "", extract.WrapExtractError(op, err, "")
	}

	resp, err := b.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  document,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	})
	if err != nil {
		return "", extract.WrapExtractError(op, err, "Vision API call failed")
	}
	if len(resp.Responses) == 0 {
		return "", extract.WrapExtractError(op, ErrEmptyResponse, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return "", extract.WrapExtractError(op, fmt.Errorf("vision API: %s", fileResp.Error.Message), "")
	}

	var sb strings.Builder
	for i, page := range fileResp.Responses {
		if page.Error != nil {
			return "", extract.WrapExtractError(op, fmt.Errorf("page %d: %s", i+1, page.Error.Message), "")
		}
		if page.FullTextAnnotation == nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.FullTextAnnotation.Text)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", extract.WrapExtractError(op, ErrEmptyResponse, "")
	}
	return text, nil
}

// Close closes the underlying client.
func (b *VisionBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
