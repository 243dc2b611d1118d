package vision

import (
	"context"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

// ChainConfig carries everything needed to construct the configured
// providers.
type ChainConfig struct {
	// Order lists provider names by preference: gemini, google-vision,
	// document-ai, openai.
	Order []string

	ProjectID    string
	Location     string
	GeminiRegion string
	GeminiModel  string
	ProcessorID  string
	OpenAIKey    string
	OpenAIModel  string
}

// BuildChain constructs the cloud backends named in the preference order.
// A provider whose credentials are missing or whose client cannot be
// created is skipped with a log line; the chain an offline user gets is
// simply empty, which downstream treats as cloud-unavailable.
func BuildChain(ctx context.Context, cfg ChainConfig) []extract.CloudBackend {
	log := logger.WithComponent("vision")

	var chain []extract.CloudBackend
	for _, name := range cfg.Order {
		var (
			backend extract.CloudBackend
			err     error
		)
		switch name {
		case "gemini":
			backend, err = NewGeminiBackend(ctx, cfg.ProjectID, cfg.GeminiRegion, cfg.GeminiModel)
		case "google-vision":
			backend, err = NewVisionBackend(ctx)
		case "document-ai":
			backend, err = NewDocumentAIBackend(ctx, DocumentAIConfig{
				ProjectID:   cfg.ProjectID,
				Location:    cfg.Location,
				ProcessorID: cfg.ProcessorID,
			})
		case "openai":
			backend, err = NewOpenAIBackend(cfg.OpenAIKey, cfg.OpenAIModel)
		default:
			log.Warn().Str("provider", name).Msg("Unknown cloud provider in order, skipping")
			continue
		}
		if err != nil {
			log.Info().Err(err).Str("provider", name).Msg("Cloud provider not available")
			continue
		}
		log.Debug().Str("provider", name).Msg("Cloud provider configured")
		chain = append(chain, backend)
	}
	return chain
}
