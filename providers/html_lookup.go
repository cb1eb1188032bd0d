package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cleanistic/config"
	"cleanistic/models"
)

// HTMLLookup scrapes a property record page. The endpoint is a URL template
// with an {address} placeholder, e.g. https://records.example.com/search?q={address}.
// Fields are read from elements carrying a data-property attribute.
type HTMLLookup struct {
	endpoint string
	client   *http.Client
}

var numberRegex = regexp.MustCompile(`-?[0-9][0-9,]*(\.[0-9]+)?`)

func NewHTMLLookup(cfg config.ProviderConfig, client *http.Client) *HTMLLookup {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTMLLookup{
		endpoint: cfg.Endpoint,
		client:   client,
	}
}

func (l *HTMLLookup) LookupProperty(ctx context.Context, address string) (*models.PropertyAttributes, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &models.PropertyLookupError{Address: address, Err: errors.New("empty address")}
	}

	target := strings.ReplaceAll(l.endpoint, "{address}", url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &models.PropertyLookupError{Address: address, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &models.PropertyLookupError{Address: address, Err: fmt.Errorf("fetch: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &models.PropertyLookupError{Address: address, Err: errAddressNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.PropertyLookupError{Address: address, Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}

	attrs, err := ParseRecordHTML(resp.Body)
	if err != nil {
		return nil, &models.PropertyLookupError{Address: address, Err: err}
	}
	if attrs.Address == "" {
		attrs.Address = address
	}
	return attrs, nil
}

// ParseRecordHTML extracts property attributes from a record page
func ParseRecordHTML(r io.Reader) (*models.PropertyAttributes, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if doc.Find("[data-property]").Length() == 0 {
		return nil, errAddressNotFound
	}

	attrs := &models.PropertyAttributes{
		Address:       extractValue(doc, "address"),
		ExternalID:    extractValue(doc, "external-id"),
		PropertyType:  extractValue(doc, "property-type"),
		SquareFootage: extractFloat(doc, "square-footage"),
		LotSize:       optionalFloat(doc, "lot-size"),
		YearBuilt:     optionalInt(doc, "year-built"),
		Bedrooms:      optionalInt(doc, "bedrooms"),
		Bathrooms:     optionalInt(doc, "bathrooms"),
		TaxValue:      optionalFloat(doc, "tax-value"),
	}

	if date := extractValue(doc, "last-sale-date"); date != "" {
		attrs.LastSale = &models.LastSale{Date: date, Price: extractFloat(doc, "last-sale-price")}
	}

	if pos, ok := doc.Find(`meta[name="geo.position"]`).Attr("content"); ok {
		if c, ok := parseGeoPosition(pos); ok {
			attrs.Coordinates = &c
		}
	}

	return attrs, nil
}

func extractValue(doc *goquery.Document, field string) string {
	return strings.TrimSpace(doc.Find(`[data-property="` + field + `"]`).First().Text())
}

// extractFloat reads the first number in a field, "1,888 sqft" -> 1888
func extractFloat(doc *goquery.Document, field string) float64 {
	f, _ := parseNumber(extractValue(doc, field))
	return f
}

func optionalFloat(doc *goquery.Document, field string) *float64 {
	f, ok := parseNumber(extractValue(doc, field))
	if !ok {
		return nil
	}
	return &f
}

func optionalInt(doc *goquery.Document, field string) *int {
	f, ok := parseNumber(extractValue(doc, field))
	if !ok {
		return nil
	}
	i := int(f)
	return &i
}

func parseNumber(text string) (float64, bool) {
	m := numberRegex.FindString(text)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseGeoPosition reads the "lat;lng" format of the geo.position meta tag
func parseGeoPosition(s string) (models.Coordinates, bool) {
	parts := strings.Split(s, ";")
	if len(parts) != 2 {
		return models.Coordinates{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return models.Coordinates{}, false
	}
	c := models.Coordinates{Lat: lat, Lng: lng}
	return c, c.Valid()
}
