// Package providers holds the external collaborators of an analysis: the
// vision model that counts features in photos and the property record lookup.
package providers

import (
	"context"
	"fmt"
	"net/http"

	"cleanistic/config"
	"cleanistic/models"
)

// VisionProvider detects features in property photos. Results are returned
// in input order, one per image.
type VisionProvider interface {
	AnalyzeImages(ctx context.Context, images []models.ImageInput) ([]models.ImageFeatures, error)
}

// PropertyLookup resolves an address to its recorded attributes
type PropertyLookup interface {
	LookupProperty(ctx context.Context, address string) (*models.PropertyAttributes, error)
}

func NewVisionProvider(cfg config.ProviderConfig, client *http.Client) (VisionProvider, error) {
	switch cfg.Provider {
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("vision provider http: VISION_ENDPOINT not set")
		}
		return NewHTTPVision(cfg, client), nil
	case "fixture", "":
		return LoadFixtureVision(cfg.FixturesPath)
	default:
		return nil, fmt.Errorf("unknown vision provider: %s", cfg.Provider)
	}
}

func NewPropertyLookup(cfg config.ProviderConfig, client *http.Client) (PropertyLookup, error) {
	switch cfg.Provider {
	case "html":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("lookup provider html: LOOKUP_ENDPOINT not set")
		}
		return NewHTMLLookup(cfg, client), nil
	case "browser":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("lookup provider browser: LOOKUP_ENDPOINT not set")
		}
		return NewBrowserLookup(cfg), nil
	case "fixture", "":
		return LoadFixtureLookup(cfg.FixturesPath)
	default:
		return nil, fmt.Errorf("unknown lookup provider: %s", cfg.Provider)
	}
}
