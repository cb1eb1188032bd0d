package providers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cleanistic/identity"
	"cleanistic/models"
)

// FixtureFile is the YAML document behind the fixture providers
type FixtureFile struct {
	Vision     VisionFixtures    `yaml:"vision"`
	Properties []PropertyFixture `yaml:"properties"`
	// Fallback answers lookups for addresses not listed in Properties
	Fallback *PropertyFixture `yaml:"fallback"`
}

type VisionFixtures struct {
	Default    FeatureFixture            `yaml:"default"`
	ByFilename map[string]FeatureFixture `yaml:"by_filename"`
}

type FeatureFixture struct {
	Windows    int     `yaml:"windows"`
	Doors      int     `yaml:"doors"`
	Skylights  int     `yaml:"skylights"`
	Confidence float64 `yaml:"confidence"`
}

type PropertyFixture struct {
	Address       string   `yaml:"address"`
	ExternalID    string   `yaml:"external_id"`
	PropertyType  string   `yaml:"property_type"`
	SquareFootage float64  `yaml:"square_footage"`
	LotSize       *float64 `yaml:"lot_size"`
	YearBuilt     *int     `yaml:"year_built"`
	Bedrooms      *int     `yaml:"bedrooms"`
	Bathrooms     *int     `yaml:"bathrooms"`
	TaxValue      *float64 `yaml:"tax_value"`
	LastSaleDate  string   `yaml:"last_sale_date"`
	LastSalePrice float64  `yaml:"last_sale_price"`
	Lat           float64  `yaml:"lat"`
	Lng           float64  `yaml:"lng"`
}

var errAddressNotFound = errors.New("no record for address")

func LoadFixtures(path string) (*FixtureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f FixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return &f, nil
}

// FixtureVision answers every image with configured counts, so that demos
// and tests produce stable estimates.
type FixtureVision struct {
	fixtures VisionFixtures
}

func NewFixtureVision(fixtures VisionFixtures) *FixtureVision {
	return &FixtureVision{fixtures: fixtures}
}

func LoadFixtureVision(path string) (*FixtureVision, error) {
	f, err := LoadFixtures(path)
	if err != nil {
		return nil, err
	}
	return NewFixtureVision(f.Vision), nil
}

func (v *FixtureVision) AnalyzeImages(ctx context.Context, images []models.ImageInput) ([]models.ImageFeatures, error) {
	results := make([]models.ImageFeatures, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := ValidateImage(img); err != nil {
			return nil, err
		}

		fx, ok := v.fixtures.ByFilename[img.Filename]
		if !ok {
			fx = v.fixtures.Default
		}
		results = append(results, models.ImageFeatures{
			Windows:    fx.Windows,
			Doors:      fx.Doors,
			Skylights:  fx.Skylights,
			Confidence: fx.Confidence,
			Angle:      angleFor(i),
		})
	}
	return results, nil
}

// FixtureLookup resolves addresses against a fixed set of records keyed by
// normalised address
type FixtureLookup struct {
	byKey    map[string]PropertyFixture
	fallback *PropertyFixture
}

func NewFixtureLookup(properties []PropertyFixture, fallback *PropertyFixture) *FixtureLookup {
	byKey := make(map[string]PropertyFixture, len(properties))
	for _, p := range properties {
		byKey[identity.AddressKey(p.Address)] = p
	}
	return &FixtureLookup{byKey: byKey, fallback: fallback}
}

func LoadFixtureLookup(path string) (*FixtureLookup, error) {
	f, err := LoadFixtures(path)
	if err != nil {
		return nil, err
	}
	return NewFixtureLookup(f.Properties, f.Fallback), nil
}

func (l *FixtureLookup) LookupProperty(ctx context.Context, address string) (*models.PropertyAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if identity.NormalizeAddress(address) == "" {
		return nil, &models.PropertyLookupError{Address: address, Err: errors.New("empty address")}
	}

	p, ok := l.byKey[identity.AddressKey(address)]
	if !ok {
		if l.fallback == nil {
			return nil, &models.PropertyLookupError{Address: address, Err: errAddressNotFound}
		}
		p = *l.fallback
	}

	attrs := p.toAttributes()
	attrs.Address = address
	return attrs, nil
}

func (p PropertyFixture) toAttributes() *models.PropertyAttributes {
	attrs := &models.PropertyAttributes{
		Address:       p.Address,
		ExternalID:    p.ExternalID,
		PropertyType:  p.PropertyType,
		SquareFootage: p.SquareFootage,
		LotSize:       p.LotSize,
		YearBuilt:     p.YearBuilt,
		Bedrooms:      p.Bedrooms,
		Bathrooms:     p.Bathrooms,
		TaxValue:      p.TaxValue,
	}
	if p.LastSaleDate != "" {
		attrs.LastSale = &models.LastSale{Date: p.LastSaleDate, Price: p.LastSalePrice}
	}
	if c := (models.Coordinates{Lat: p.Lat, Lng: p.Lng}); c.Valid() {
		attrs.Coordinates = &c
	}
	return attrs
}
