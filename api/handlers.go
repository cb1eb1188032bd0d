package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cleanistic/models"
	"cleanistic/services"
)

const (
	defaultMaxUploadBytes = 32 << 20
	defaultRadiusKm       = 5.0
)

// Handler serves the estimating API
type Handler struct {
	analyses        *services.AnalysisService
	quotes          *services.QuoteService
	reports         *services.ReportService
	defaultServices []string
	maxUploadBytes  int64
}

// NewHandler creates a handler. defaultServices are priced when a request names none.
func NewHandler(analyses *services.AnalysisService, quotes *services.QuoteService, reports *services.ReportService, defaultServices []string) *Handler {
	return &Handler{
		analyses:        analyses,
		quotes:          quotes,
		reports:         reports,
		defaultServices: defaultServices,
		maxUploadBytes:  defaultMaxUploadBytes,
	}
}

type createQuoteRequest struct {
	CustomerInfo models.CustomerInfo `json:"customerInfo" binding:"required"`
	Notes        string              `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateAnalysis handles POST /api/v1/analyses (multipart: address, services, images)
func (h *Handler) CreateAnalysis(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, CodeUploadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
	}

	address := strings.TrimSpace(c.PostForm("address"))
	if address == "" {
		BadRequest(c, "address is required")
		return
	}

	names := splitList(c.PostFormArray("services"))
	if len(names) == 0 {
		names = h.defaultServices
	}
	serviceTypes, err := services.ParseServices(names)
	if err != nil {
		FromError(c, err)
		return
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["images"]
	}
	images, err := readImages(files)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	analysis, err := h.analyses.AnalyzeProperty(c.Request.Context(), services.AnalysisRequest{
		Address:  address,
		Images:   images,
		Services: serviceTypes,
	})
	if err != nil {
		FromError(c, err)
		return
	}

	Success(c, http.StatusCreated, analysis)
}

// ListAnalyses handles GET /api/v1/analyses?address=&near=lat,lng&radius_km=
func (h *Handler) ListAnalyses(c *gin.Context) {
	filter := services.AnalysisFilter{Address: c.Query("address")}

	if near := c.Query("near"); near != "" {
		coords, err := parseNear(near)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		filter.Near = &coords
		filter.RadiusKm = defaultRadiusKm
		if raw := c.Query("radius_km"); raw != "" {
			radius, err := strconv.ParseFloat(raw, 64)
			if err != nil || radius <= 0 {
				BadRequest(c, "radius_km must be a positive number")
				return
			}
			filter.RadiusKm = radius
		}
	}

	analyses, err := h.analyses.ListAnalyses(c.Request.Context(), filter)
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, http.StatusOK, analyses)
}

// GetAnalysis handles GET /api/v1/analyses/:id
func (h *Handler) GetAnalysis(c *gin.Context) {
	analysis, err := h.analyses.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, http.StatusOK, analysis)
}

// CreateQuote handles POST /api/v1/analyses/:id/quotes
func (h *Handler) CreateQuote(c *gin.Context) {
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid quote request: "+err.Error())
		return
	}

	quote, err := h.quotes.GenerateQuote(c.Request.Context(), c.Param("id"), req.CustomerInfo, req.Notes)
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, http.StatusCreated, quote)
}

// ListQuotes handles GET /api/v1/quotes?status=&analysis_id=
func (h *Handler) ListQuotes(c *gin.Context) {
	filter := services.QuoteFilter{AnalysisID: c.Query("analysis_id")}
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseQuoteStatus(raw)
		if !ok {
			FromError(c, &models.InvalidStatusTransitionError{To: raw})
			return
		}
		filter.Status = status
	}

	quotes, err := h.quotes.ListQuotes(c.Request.Context(), filter)
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, http.StatusOK, quotes)
}

// GetQuote handles GET /api/v1/quotes/:id
func (h *Handler) GetQuote(c *gin.Context) {
	quote, err := h.quotes.GetQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, http.StatusOK, quote)
}

// UpdateQuoteStatus handles PATCH /api/v1/quotes/:id/status
func (h *Handler) UpdateQuoteStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "status is required")
		return
	}

	quote, err := h.quotes.UpdateQuoteStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, http.StatusOK, quote)
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	report, err := h.reports.Build(c.Request.Context())
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, http.StatusOK, report)
}

func readImages(files []*multipart.FileHeader) ([]models.ImageInput, error) {
	images := make([]models.ImageInput, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		images = append(images, models.ImageInput{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return images, nil
}

// splitList accepts both repeated fields and comma separated values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseNear(s string) (models.Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Coordinates{}, fmt.Errorf("near must be lat,lng")
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	c := models.Coordinates{Lat: lat, Lng: lng}
	if err1 != nil || err2 != nil || !c.Valid() {
		return models.Coordinates{}, fmt.Errorf("near must be lat,lng")
	}
	return c, nil
}
