package estimate

import (
	"errors"
	"math"
	"slices"
	"testing"

	"cleanistic/config"
	"cleanistic/models"
)

func TestAggregate_SumsCounts(t *testing.T) {
	images := []models.ImageFeatures{
		{Windows: 3, Doors: 1, Skylights: 0, Confidence: 0.9, Angle: models.AngleFront},
		{Windows: 5, Doors: 2, Skylights: 1, Confidence: 0.8, Angle: models.AngleBack},
		{Windows: 4, Doors: 0, Skylights: 2, Confidence: 0.7, Angle: models.AngleSide},
	}

	f, err := Aggregate(images, 2000)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if f.Windows != 12 || f.Doors != 3 || f.Skylights != 3 {
		t.Fatalf("expected 12/3/3, got %d/%d/%d", f.Windows, f.Doors, f.Skylights)
	}

	reversed := slices.Clone(images)
	slices.Reverse(reversed)
	r, err := Aggregate(reversed, 2000)
	if err != nil {
		t.Fatalf("aggregate reversed failed: %v", err)
	}
	if r != f {
		t.Fatalf("reordering changed result: %+v vs %+v", r, f)
	}
}

func TestAggregate_DerivedFeatures(t *testing.T) {
	images := []models.ImageFeatures{{Windows: 1, Confidence: 1}}

	f, err := Aggregate(images, 2000)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if f.RoofArea != 2600 {
		t.Fatalf("expected roof area 2600, got %d", f.RoofArea)
	}
	if f.GutterFeet != 179 {
		t.Fatalf("expected gutter feet 179, got %d", f.GutterFeet)
	}
	if f.DeckArea != 200 || f.DrivewaySqFt != 400 {
		t.Fatalf("unexpected supplementary areas deck=%d driveway=%d", f.DeckArea, f.DrivewaySqFt)
	}

	again, _ := Aggregate(images, 2000)
	if again != f {
		t.Fatalf("derived features not deterministic")
	}

	if got := GutterFeet(1800); got != 170 {
		t.Fatalf("expected gutter feet 170 for 1800 sqft, got %d", got)
	}
}

func TestAggregate_NoImages(t *testing.T) {
	_, err := Aggregate(nil, 2000)
	var aerr *models.AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AnalysisError, got %v", err)
	}
	if aerr.Reason != "no image data" {
		t.Fatalf("unexpected reason %q", aerr.Reason)
	}
}

func TestMeanConfidence(t *testing.T) {
	if got := MeanConfidence([]models.ImageFeatures{{Confidence: 0.97}}); got != 0.97 {
		t.Fatalf("single image confidence should pass through, got %v", got)
	}
	got := MeanConfidence([]models.ImageFeatures{{Confidence: 0.9}, {Confidence: 0.8}})
	if math.Abs(got-0.85) > 1e-9 {
		t.Fatalf("expected 0.85, got %v", got)
	}
}

func TestEngine_Stories(t *testing.T) {
	e := NewEngine(nil)
	cases := []struct {
		size float64
		want int
	}{
		{0, 1},
		{800, 1},
		{1200, 1},
		{1201, 2},
		{1800, 2},
		{3600, 3},
	}
	for _, c := range cases {
		if got := e.Stories(c.size); got != c.want {
			t.Fatalf("stories(%v): expected %d, got %d", c.size, c.want, got)
		}
	}
}

func TestEngine_Context(t *testing.T) {
	e := NewEngine(nil)

	year := 1994
	pc := e.Context(&models.PropertyAttributes{PropertyType: "Commercial Retail", SquareFootage: 1800, YearBuilt: &year}, 2000)
	if pc.Size != 1800 || pc.Stories != 2 || pc.Type != models.PropertyTypeCommercial {
		t.Fatalf("unexpected context %+v", pc)
	}
	if pc.YearBuilt == nil || *pc.YearBuilt != 1994 {
		t.Fatalf("year built not carried over")
	}

	pc = e.Context(&models.PropertyAttributes{PropertyType: "Single Family Residential"}, 2000)
	if pc.Size != 2000 || pc.Stories != 2 || pc.Type != models.PropertyTypeResidential {
		t.Fatalf("fallback size not applied: %+v", pc)
	}

	pc = e.Context(nil, 2000)
	if pc.Size != 2000 || pc.Stories != 2 {
		t.Fatalf("nil lookup should use fallback: %+v", pc)
	}
}

func TestEngine_PriceWindowCleaning(t *testing.T) {
	e := NewEngine(nil)
	property := models.PropertyContext{Size: 1000, Stories: 1}
	features := models.AggregatedFeatures{Windows: 10}

	est, err := e.Price(models.ServiceWindowCleaning, property, features)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if est.Price != 80 {
		t.Fatalf("expected price 80, got %d", est.Price)
	}
	if est.Frequency != models.FrequencyOneTime {
		t.Fatalf("expected one_time frequency, got %s", est.Frequency)
	}
	if est.Details.BaseRate != 80 || est.Details.Difficulty != 1 || est.Details.Accessibility != 1 {
		t.Fatalf("unexpected details %+v", est.Details)
	}
	if est.Details.TimeEstimate != 30 {
		t.Fatalf("expected 30 minutes, got %v", est.Details.TimeEstimate)
	}
	if !slices.Equal(est.Details.Equipment, []string{"Squeegees", "Extension poles", "Cleaning solution"}) {
		t.Fatalf("unexpected equipment %v", est.Details.Equipment)
	}
}

func TestEngine_PriceAllServices(t *testing.T) {
	e := NewEngine(nil)
	property := models.PropertyContext{Size: 2000, Stories: 1}
	features, _ := Aggregate([]models.ImageFeatures{{Windows: 10}}, 2000)

	cases := []struct {
		service   models.ServiceType
		wantPrice int
		wantTime  float64
	}{
		{models.ServiceWindowCleaning, 80, 30},
		{models.ServicePressureWashing, 300, 1000},
		{models.ServiceGutterCleaning, 2148, 358},
		{models.ServiceRoofCleaning, 650, 2600},
	}
	for _, c := range cases {
		est, err := e.Price(c.service, property, features)
		if err != nil {
			t.Fatalf("%s: price failed: %v", c.service, err)
		}
		if est.Price != c.wantPrice {
			t.Fatalf("%s: expected price %d, got %d", c.service, c.wantPrice, est.Price)
		}
		if est.Details.TimeEstimate != c.wantTime {
			t.Fatalf("%s: expected %v minutes, got %v", c.service, c.wantTime, est.Details.TimeEstimate)
		}
	}
}

func TestEngine_Multipliers(t *testing.T) {
	e := NewEngine(nil)

	if got := e.DifficultyMultiplier(2); math.Abs(got-1.3) > 1e-9 {
		t.Fatalf("expected difficulty 1.3, got %v", got)
	}
	if got := e.AccessibilityMultiplier(2); got != 1.2 {
		t.Fatalf("expected accessibility 1.2, got %v", got)
	}

	est, err := e.Price(models.ServiceWindowCleaning, models.PropertyContext{Stories: 1}, models.AggregatedFeatures{Windows: 10, Skylights: 1})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if est.Price != 96 {
		t.Fatalf("expected skylight price 96, got %d", est.Price)
	}
}

func TestEngine_MonotonicInStories(t *testing.T) {
	e := NewEngine(nil)
	features, _ := Aggregate([]models.ImageFeatures{{Windows: 17, Skylights: 1}}, 2450)

	for _, service := range models.AllServices {
		prevPrice := -1
		prevDifficulty := 0.0
		for stories := 1; stories <= 6; stories++ {
			est, err := e.Price(service, models.PropertyContext{Size: 2450, Stories: stories}, features)
			if err != nil {
				t.Fatalf("%s: price failed: %v", service, err)
			}
			if est.Price < prevPrice || est.Details.Difficulty < prevDifficulty {
				t.Fatalf("%s: price dropped at %d stories (%d < %d)", service, stories, est.Price, prevPrice)
			}
			prevPrice = est.Price
			prevDifficulty = est.Details.Difficulty
		}
	}
}

func TestEngine_RoundsHalfAwayFromZero(t *testing.T) {
	pricing := config.DefaultPricing()
	window := pricing.Services["window_cleaning"]
	window.Rate = 0.5
	pricing.Services["window_cleaning"] = window
	e := NewEngine(pricing)

	cases := []struct {
		windows int
		want    int
	}{
		{5, 3}, // 2.5
		{7, 4}, // 3.5
		{4, 2},
	}
	for _, c := range cases {
		est, err := e.Price(models.ServiceWindowCleaning, models.PropertyContext{Stories: 1}, models.AggregatedFeatures{Windows: c.windows})
		if err != nil {
			t.Fatalf("price failed: %v", err)
		}
		if est.Price != c.want {
			t.Fatalf("%d windows: expected %d, got %d", c.windows, c.want, est.Price)
		}
	}
}

func TestEngine_UnsupportedService(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.Price("lawn_mowing", models.PropertyContext{Stories: 1}, models.AggregatedFeatures{})

	var uerr *models.UnsupportedServiceError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnsupportedServiceError, got %v", err)
	}
	if uerr.Service != "lawn_mowing" {
		t.Fatalf("unexpected service in error: %q", uerr.Service)
	}
}

func TestEngine_ScenarioTwoStoryHouse(t *testing.T) {
	e := NewEngine(nil)
	property := e.Context(&models.PropertyAttributes{SquareFootage: 1800}, 2000)
	features, err := Aggregate([]models.ImageFeatures{{Windows: 12, Doors: 2, Confidence: 0.97}}, property.Size)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	var estimates []models.ServiceEstimate
	for _, s := range []models.ServiceType{models.ServiceWindowCleaning, models.ServiceGutterCleaning} {
		est, err := e.Price(s, property, features)
		if err != nil {
			t.Fatalf("price %s: %v", s, err)
		}
		estimates = append(estimates, est)
	}

	if estimates[0].Price != 125 {
		t.Fatalf("expected window price 125, got %d", estimates[0].Price)
	}
	if estimates[1].Price != 2652 {
		t.Fatalf("expected gutter price 2652, got %d", estimates[1].Price)
	}
	if total := Total(estimates); total != 2777 {
		t.Fatalf("expected total 2777, got %d", total)
	}
}
