package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cleanistic/config"
	"cleanistic/estimate"
	"cleanistic/identity"
	"cleanistic/models"
	"cleanistic/providers"
	"cleanistic/storage"
)

// AnalysisService runs the estimation pipeline and owns analysis records
type AnalysisService struct {
	store       storage.Store
	vision      providers.VisionProvider
	lookup      providers.PropertyLookup
	engine      *estimate.Engine
	media       *MediaService
	defaultSize float64

	now   func() time.Time
	newID func() string
}

// NewAnalysisService creates a new AnalysisService. media may be nil.
func NewAnalysisService(store storage.Store, vision providers.VisionProvider, lookup providers.PropertyLookup,
	engine *estimate.Engine, media *MediaService, cfg config.AnalysisConfig) *AnalysisService {
	if media == nil {
		media = NewMediaService(config.S3Config{}, nil)
	}
	return &AnalysisService{
		store:       store,
		vision:      vision,
		lookup:      lookup,
		engine:      engine,
		media:       media,
		defaultSize: cfg.DefaultSquareFootage,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// AnalysisRequest is the input of one estimation run
type AnalysisRequest struct {
	Address  string
	Images   []models.ImageInput
	Services []models.ServiceType
}

// AnalysisFilter narrows ListAnalyses. Zero value lists everything.
type AnalysisFilter struct {
	// Address matches by normalised substring or fuzzy similarity
	Address string
	// Near and RadiusKm restrict to analyses within a great-circle distance
	Near     *models.Coordinates
	RadiusKm float64
}

// AnalyzeProperty runs vision and lookup concurrently, then assembles and
// stores the analysis. Nothing is stored when any step fails.
func (s *AnalysisService) AnalyzeProperty(ctx context.Context, req AnalysisRequest) (*models.PropertyAnalysis, error) {
	if err := validateServices(req.Services); err != nil {
		return nil, err
	}
	if len(req.Images) == 0 {
		return nil, &models.AnalysisError{Reason: "no image data"}
	}

	var (
		features []models.ImageFeatures
		attrs    *models.PropertyAttributes
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := s.vision.AnalyzeImages(gctx, req.Images)
		if err != nil {
			return &models.AnalysisError{Reason: "image analysis failed", Err: err}
		}
		if len(f) != len(req.Images) {
			return &models.AnalysisError{
				Reason: fmt.Sprintf("vision returned %d results for %d images", len(f), len(req.Images)),
			}
		}
		features = f
		return nil
	})
	g.Go(func() error {
		a, err := s.lookup.LookupProperty(gctx, req.Address)
		if err != nil {
			return &models.AnalysisError{Reason: "property lookup failed", Err: err}
		}
		attrs = a
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Printf("Analysis: %s: %v", req.Address, err)
		return nil, err
	}

	images := make([]models.AnalyzedImage, len(req.Images))
	media := make([]models.Media, len(req.Images))
	for i, img := range req.Images {
		imageID := s.newID()
		media[i] = s.media.Prepare(imageID, img)
		images[i] = models.AnalyzedImage{
			ID:        imageID,
			URL:       media[i].URL,
			Thumbnail: media[i].URL,
			Analysis:  features[i],
		}
	}

	analysis, err := s.Assemble(ctx, req.Address, images, attrs, req.Services)
	if err != nil {
		log.Printf("Analysis: %s: %v", req.Address, err)
		return nil, err
	}

	queued := s.media.Enqueue(analysis.ID, media)
	log.Printf("Analysis: %s stored for %q (%d services, total %d, confidence %.2f, %d images queued)",
		analysis.ID, analysis.Address, len(analysis.Services), analysis.TotalEstimate, analysis.Confidence, queued)

	return analysis, nil
}

// Assemble prices the requested services from per-image detections and the
// lookup result, then stores the analysis. lookup may be nil, in which case
// the default square footage is used.
func (s *AnalysisService) Assemble(ctx context.Context, address string, images []models.AnalyzedImage,
	lookup *models.PropertyAttributes, services []models.ServiceType) (*models.PropertyAnalysis, error) {
	if err := validateServices(services); err != nil {
		return nil, err
	}

	detections := make([]models.ImageFeatures, len(images))
	for i, img := range images {
		detections[i] = img.Analysis
	}

	property := s.engine.Context(lookup, s.defaultSize)
	features, err := estimate.Aggregate(detections, property.Size)
	if err != nil {
		return nil, err
	}

	estimates := make([]models.ServiceEstimate, 0, len(services))
	for _, service := range services {
		est, err := s.engine.Price(service, property, features)
		if err != nil {
			return nil, err
		}
		estimates = append(estimates, est)
	}

	analysis := &models.PropertyAnalysis{
		ID:            s.newID(),
		Address:       address,
		PropertyData:  property,
		Features:      features,
		Services:      estimates,
		TotalEstimate: estimate.Total(estimates),
		Confidence:    estimate.MeanConfidence(detections),
		Timestamp:     s.now(),
		Images:        images,
	}
	if lookup != nil && lookup.Coordinates != nil {
		analysis.Coordinates = *lookup.Coordinates
	}

	if err := s.store.CreateAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}

	return analysis, nil
}

func (s *AnalysisService) GetAnalysis(ctx context.Context, id string) (*models.PropertyAnalysis, error) {
	a, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	if a == nil {
		return nil, &models.AnalysisNotFoundError{ID: id}
	}
	return a, nil
}

func (s *AnalysisService) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.PropertyAnalysis, error) {
	all, err := s.store.ListAnalyses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	query := strings.TrimSpace(filter.Address)
	out := make([]*models.PropertyAnalysis, 0, len(all))
	for _, a := range all {
		if query != "" && !identity.Matches(query, a.Address, identity.DefaultMatchThreshold) {
			continue
		}
		if filter.Near != nil {
			if !a.Coordinates.Valid() || a.Coordinates.DistanceKm(*filter.Near) > filter.RadiusKm {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// ParseServices converts service names, rejecting unknown ones
func ParseServices(names []string) ([]models.ServiceType, error) {
	out := make([]models.ServiceType, 0, len(names))
	for _, name := range names {
		st, ok := models.ParseServiceType(name)
		if !ok {
			return nil, &models.UnsupportedServiceError{Service: name}
		}
		out = append(out, st)
	}
	return out, nil
}

func validateServices(services []models.ServiceType) error {
	if len(services) == 0 {
		return &models.AnalysisError{Reason: "no services requested"}
	}
	for _, st := range services {
		if _, ok := models.ParseServiceType(string(st)); !ok {
			return &models.UnsupportedServiceError{Service: string(st)}
		}
	}
	return nil
}
