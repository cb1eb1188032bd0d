package models

import (
	"slices"
	"strings"
	"time"
)

// ServiceType identifies a priced cleaning/maintenance offering
type ServiceType string

const (
	ServiceWindowCleaning  ServiceType = "window_cleaning"
	ServicePressureWashing ServiceType = "pressure_washing"
	ServiceGutterCleaning  ServiceType = "gutter_cleaning"
	ServiceRoofCleaning    ServiceType = "roof_cleaning"
)

// AllServices lists every service the pricing engine knows about, in display order
var AllServices = []ServiceType{
	ServiceWindowCleaning,
	ServicePressureWashing,
	ServiceGutterCleaning,
	ServiceRoofCleaning,
}

// ParseServiceType normalises s and reports whether it names a known service
func ParseServiceType(s string) (ServiceType, bool) {
	st := ServiceType(strings.ToLower(strings.TrimSpace(s)))
	return st, slices.Contains(AllServices, st)
}

// Frequency of a service visit. Only one_time is produced by the estimation flow.
type Frequency string

const (
	FrequencyOneTime   Frequency = "one_time"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyBiannual  Frequency = "biannual"
	FrequencyAnnual    Frequency = "annual"
)

// Angle is the vantage point an image was taken from
type Angle string

const (
	AngleFront  Angle = "front"
	AngleBack   Angle = "back"
	AngleSide   Angle = "side"
	AngleAerial Angle = "aerial"
)

// Angles in the order a camera operator is asked to shoot them
var Angles = []Angle{AngleFront, AngleBack, AngleSide, AngleAerial}

// Property types distinguished downstream
const (
	PropertyTypeResidential = "residential"
	PropertyTypeCommercial  = "commercial"
)

// ImageInput is one uploaded image handed to the vision provider
type ImageInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageFeatures is what the vision provider detected in a single image
type ImageFeatures struct {
	Windows    int     `json:"windows"`
	Doors      int     `json:"doors"`
	Skylights  int     `json:"skylights"`
	Confidence float64 `json:"confidence"`
	Angle      Angle   `json:"angle"`
}

// AnalyzedImage is the per-image record kept on an analysis
type AnalyzedImage struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Thumbnail string        `json:"thumbnail"`
	Analysis  ImageFeatures `json:"analysis"`
}

// LastSale is the most recent recorded sale of a property
type LastSale struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// PropertyAttributes is the result of a property lookup by address.
// SquareFootage is 0 when the provider has no figure for it.
type PropertyAttributes struct {
	Address       string       `json:"address"`
	ExternalID    string       `json:"externalId,omitempty"`
	PropertyType  string       `json:"propertyType"`
	SquareFootage float64      `json:"squareFootage"`
	LotSize       *float64     `json:"lotSize,omitempty"`
	YearBuilt     *int         `json:"yearBuilt,omitempty"`
	Bedrooms      *int         `json:"bedrooms,omitempty"`
	Bathrooms     *int         `json:"bathrooms,omitempty"`
	TaxValue      *float64     `json:"taxValue,omitempty"`
	LastSale      *LastSale    `json:"lastSale,omitempty"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
}

// AggregatedFeatures is the property-level feature set used for pricing
type AggregatedFeatures struct {
	Windows      int `json:"windows"`
	Doors        int `json:"doors"`
	Skylights    int `json:"skylights"`
	GutterFeet   int `json:"gutterFeet"`
	RoofArea     int `json:"roofArea"`
	DeckArea     int `json:"deckArea"`
	DrivewaySqFt int `json:"drivewaySqFt"`
}

// PropertyContext is the property data an analysis was priced against
type PropertyContext struct {
	Size      float64  `json:"size"`
	Type      string   `json:"type"`
	Stories   int      `json:"stories"`
	YearBuilt *int     `json:"yearBuilt,omitempty"`
	LotSize   *float64 `json:"lotSize,omitempty"`
}

// EstimateDetails explains how a service price was reached.
// BaseRate holds the base price before multipliers.
type EstimateDetails struct {
	BaseRate      float64  `json:"baseRate"`
	Difficulty    float64  `json:"difficulty"`
	Accessibility float64  `json:"accessibility"`
	Equipment     []string `json:"equipment"`
	TimeEstimate  float64  `json:"timeEstimate"` // minutes
}

// ServiceEstimate is the priced result for one requested service
type ServiceEstimate struct {
	Service   ServiceType     `json:"service"`
	Price     int             `json:"price"`
	Frequency Frequency       `json:"frequency"`
	Details   EstimateDetails `json:"details"`
}

// PropertyAnalysis is one completed estimation run
type PropertyAnalysis struct {
	ID            string             `json:"id"`
	Address       string             `json:"address"`
	Coordinates   Coordinates        `json:"coordinates"`
	PropertyData  PropertyContext    `json:"propertyData"`
	Features      AggregatedFeatures `json:"features"`
	Services      []ServiceEstimate  `json:"services"`
	TotalEstimate int                `json:"totalEstimate"`
	Confidence    float64            `json:"confidence"`
	Timestamp     time.Time          `json:"timestamp"`
	Images        []AnalyzedImage    `json:"images"`
}

// Clone returns a copy that shares no slices with a
func (a *PropertyAnalysis) Clone() *PropertyAnalysis {
	if a == nil {
		return nil
	}
	c := *a
	c.Services = CloneEstimates(a.Services)
	c.Images = slices.Clone(a.Images)
	if a.PropertyData.YearBuilt != nil {
		y := *a.PropertyData.YearBuilt
		c.PropertyData.YearBuilt = &y
	}
	if a.PropertyData.LotSize != nil {
		l := *a.PropertyData.LotSize
		c.PropertyData.LotSize = &l
	}
	return &c
}

// CloneEstimates deep-copies a slice of estimates including equipment lists
func CloneEstimates(in []ServiceEstimate) []ServiceEstimate {
	if in == nil {
		return nil
	}
	out := make([]ServiceEstimate, len(in))
	for i, e := range in {
		e.Details.Equipment = slices.Clone(e.Details.Equipment)
		out[i] = e
	}
	return out
}
