// Package estimate turns detected image features and property records into
// per-service price estimates. Everything here is pure and synchronous.
package estimate

import (
	"math"

	"cleanistic/models"
)

// Placeholder ratios for the supplementary areas. Pricing does not read them.
const (
	deckAreaRatio     = 0.10
	drivewayAreaRatio = 0.20
)

// Aggregate merges per-image detections into one property-level feature set
// and derives the measurements that cannot be seen in photos from the
// property's square footage.
func Aggregate(images []models.ImageFeatures, propertySize float64) (models.AggregatedFeatures, error) {
	if len(images) == 0 {
		return models.AggregatedFeatures{}, &models.AnalysisError{Reason: "no image data"}
	}

	var f models.AggregatedFeatures
	for _, img := range images {
		f.Windows += img.Windows
		f.Doors += img.Doors
		f.Skylights += img.Skylights
	}

	f.GutterFeet = GutterFeet(propertySize)
	f.RoofArea = RoofArea(propertySize)
	f.DeckArea = int(math.Round(propertySize * deckAreaRatio))
	f.DrivewaySqFt = int(math.Round(propertySize * drivewayAreaRatio))

	return f, nil
}

// GutterFeet approximates gutter length as the perimeter of a square footprint
func GutterFeet(size float64) int {
	return int(math.Round(4 * math.Sqrt(size)))
}

// RoofArea assumes the roof is 30% larger than the living area
func RoofArea(size float64) int {
	return int(math.Round(1.3 * size))
}

// MeanConfidence averages per-image confidence. Zero for no images.
func MeanConfidence(images []models.ImageFeatures) float64 {
	if len(images) == 0 {
		return 0
	}
	var sum float64
	for _, img := range images {
		sum += img.Confidence
	}
	return sum / float64(len(images))
}
