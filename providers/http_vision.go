package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"cleanistic/config"
	"cleanistic/models"
)

// HTTPVision sends images to a JSON vision endpoint
type HTTPVision struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type visionRequest struct {
	Images []visionImage `json:"images"`
}

type visionImage struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"` // base64
}

type visionResponse struct {
	Results []models.ImageFeatures `json:"results"`
}

func NewHTTPVision(cfg config.ProviderConfig, client *http.Client) *HTTPVision {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPVision{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}
}

func (v *HTTPVision) AnalyzeImages(ctx context.Context, images []models.ImageInput) ([]models.ImageFeatures, error) {
	reqBody := visionRequest{Images: make([]visionImage, 0, len(images))}
	for _, img := range images {
		contentType, err := ValidateImage(img)
		if err != nil {
			return nil, err
		}
		reqBody.Images = append(reqBody.Images, visionImage{
			Filename:    img.Filename,
			ContentType: contentType,
			Data:        base64.StdEncoding.EncodeToString(img.Data),
		})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &models.ImageAnalysisError{Err: fmt.Errorf("rejected by vision service: %s", bytes.TrimSpace(msg))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision service: unexpected status %d", resp.StatusCode)
	}

	var out visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}
	if len(out.Results) != len(images) {
		return nil, fmt.Errorf("vision service returned %d results for %d images", len(out.Results), len(images))
	}

	for i := range out.Results {
		r := &out.Results[i]
		if r.Windows < 0 || r.Doors < 0 || r.Skylights < 0 || r.Confidence < 0 || r.Confidence > 1 {
			return nil, &models.ImageAnalysisError{
				Image: images[i].Filename,
				Err:   fmt.Errorf("invalid detection %+v", *r),
			}
		}
		if r.Angle == "" {
			r.Angle = angleFor(i)
		} else if !slices.Contains(models.Angles, r.Angle) {
			return nil, &models.ImageAnalysisError{
				Image: images[i].Filename,
				Err:   fmt.Errorf("unknown angle %q", r.Angle),
			}
		}
	}

	return out.Results, nil
}
