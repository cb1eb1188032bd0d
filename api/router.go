// Package api exposes the estimating pipeline over HTTP
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the handlers onto a gin engine
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(Logger(), gin.Recovery(), CORS())
	r.MaxMultipartMemory = h.maxUploadBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		analyses := v1.Group("/analyses")
		{
			analyses.POST("", h.CreateAnalysis)
			analyses.GET("", h.ListAnalyses)
			analyses.GET("/:id", h.GetAnalysis)
			analyses.POST("/:id/quotes", h.CreateQuote)
		}

		quotes := v1.Group("/quotes")
		{
			quotes.GET("", h.ListQuotes)
			quotes.GET("/:id", h.GetQuote)
			quotes.PATCH("/:id/status", h.UpdateQuoteStatus)
		}

		v1.GET("/stats", h.Stats)
	}

	return r
}
