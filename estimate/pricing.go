package estimate

import (
	"math"
	"slices"
	"strings"

	"cleanistic/config"
	"cleanistic/models"
)

// Engine prices services against a rate card
type Engine struct {
	pricing *config.PricingConfig
}

func NewEngine(pricing *config.PricingConfig) *Engine {
	if pricing == nil {
		pricing = config.DefaultPricing()
	}
	return &Engine{pricing: pricing}
}

// Stories estimates the story count from living area. Never below 1.
func (e *Engine) Stories(size float64) int {
	if size <= 0 || e.pricing.StorySqFt <= 0 {
		return 1
	}
	stories := int(math.Ceil(size / e.pricing.StorySqFt))
	if stories < 1 {
		return 1
	}
	return stories
}

// Context derives the property data used for pricing from a lookup result.
// fallbackSize is used when the lookup has no square footage.
func (e *Engine) Context(attrs *models.PropertyAttributes, fallbackSize float64) models.PropertyContext {
	pc := models.PropertyContext{
		Size: fallbackSize,
		Type: models.PropertyTypeResidential,
	}
	if attrs == nil {
		pc.Stories = e.Stories(pc.Size)
		return pc
	}

	if attrs.SquareFootage > 0 {
		pc.Size = attrs.SquareFootage
	}
	pc.Type = classifyPropertyType(attrs.PropertyType)
	pc.YearBuilt = attrs.YearBuilt
	pc.LotSize = attrs.LotSize
	pc.Stories = e.Stories(pc.Size)
	return pc
}

func classifyPropertyType(raw string) string {
	if strings.Contains(strings.ToLower(raw), models.PropertyTypeCommercial) {
		return models.PropertyTypeCommercial
	}
	return models.PropertyTypeResidential
}

// DifficultyMultiplier grows with every story above the first
func (e *Engine) DifficultyMultiplier(stories int) float64 {
	if stories < 1 {
		stories = 1
	}
	return 1 + float64(stories-1)*e.pricing.DifficultyPerStory
}

// AccessibilityMultiplier applies when skylights have to be worked around
func (e *Engine) AccessibilityMultiplier(skylights int) float64 {
	if skylights > 0 {
		return e.pricing.SkylightAccessibility
	}
	return 1.0
}

// Price computes the estimate for one service. Prices are rounded half away
// from zero to whole currency units.
func (e *Engine) Price(service models.ServiceType, property models.PropertyContext, features models.AggregatedFeatures) (models.ServiceEstimate, error) {
	units, ok := serviceUnits(service, property, features)
	if !ok {
		return models.ServiceEstimate{}, &models.UnsupportedServiceError{Service: string(service)}
	}
	rate, ok := e.pricing.Services[string(service)]
	if !ok {
		return models.ServiceEstimate{}, &models.UnsupportedServiceError{Service: string(service)}
	}

	basePrice := units * rate.Rate
	difficulty := e.DifficultyMultiplier(property.Stories)
	accessibility := e.AccessibilityMultiplier(features.Skylights)

	return models.ServiceEstimate{
		Service:   service,
		Price:     int(math.Round(basePrice * difficulty * accessibility)),
		Frequency: models.FrequencyOneTime,
		Details: models.EstimateDetails{
			BaseRate:      basePrice,
			Difficulty:    difficulty,
			Accessibility: accessibility,
			Equipment:     slices.Clone(rate.Equipment),
			TimeEstimate:  units * rate.MinutesPerUnit,
		},
	}, nil
}

// serviceUnits returns the measure a service is priced by
func serviceUnits(service models.ServiceType, property models.PropertyContext, features models.AggregatedFeatures) (float64, bool) {
	switch service {
	case models.ServiceWindowCleaning:
		return float64(features.Windows), true
	case models.ServicePressureWashing:
		return property.Size, true
	case models.ServiceGutterCleaning:
		return float64(features.GutterFeet), true
	case models.ServiceRoofCleaning:
		return float64(features.RoofArea), true
	default:
		return 0, false
	}
}

// Total sums the service prices
func Total(estimates []models.ServiceEstimate) int {
	total := 0
	for _, e := range estimates {
		total += e.Price
	}
	return total
}
