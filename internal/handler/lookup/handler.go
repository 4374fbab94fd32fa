package lookup

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/TomasB/whatcountry/internal/data"
	"github.com/TomasB/whatcountry/internal/geo"
	"github.com/TomasB/whatcountry/internal/metrics"
	"github.com/gin-gonic/gin"
)

const transport = "http"

// Looker runs the lookup pipeline for one domain.
type Looker interface {
	Lookup(ctx context.Context, transport, domain string) geo.Result
}

// CountryResponse represents the JSON response for a structured country lookup.
type CountryResponse struct {
	IP      string        `json:"ip"`
	Country *data.Country `json:"country,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Handler manages the HTTP lookup endpoints.
type Handler struct {
	looker    Looker
	countries data.CountryLookup
	metrics   *metrics.Metrics
}

// NewHandler creates a new lookup handler. m may be nil.
func NewHandler(looker Looker, countries data.CountryLookup, m *metrics.Metrics) *Handler {
	return &Handler{looker: looker, countries: countries, metrics: m}
}

// WhatIsCountry handles GET /what-is-country/:domain and returns the same
// document as the unix socket.
func (h *Handler) WhatIsCountry(c *gin.Context) {
	start := time.Now()
	domain := c.Param("domain")

	slog.Debug("lookup request received", "domain", domain)

	result := h.looker.Lookup(c.Request.Context(), transport, domain)

	body, err := geo.EncodeBody(result)
	if err != nil {
		slog.Error("failed to encode response", "domain", domain, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode response"})
		h.metrics.ObserveRequest(transport, "encode_error", time.Since(start))
		return
	}

	c.Header("Access-Control-Allow-Origin", "*")
	c.Data(http.StatusOK, "application/json", body)
	h.metrics.ObserveRequest(transport, "ok", time.Since(start))
}

// Country handles GET /api/v1/country/:ip using the structured record decoder.
func (h *Handler) Country(c *gin.Context) {
	raw := c.Param("ip")
	ip := net.ParseIP(raw)
	if ip == nil {
		c.JSON(http.StatusBadRequest, CountryResponse{
			IP:    raw,
			Error: "invalid IP address",
		})
		return
	}

	country, err := h.countries.LookupCountry(ip)
	if errors.Is(err, data.ErrNotFound) {
		c.JSON(http.StatusNotFound, CountryResponse{
			IP:    raw,
			Error: "no country for address",
		})
		return
	}
	if err != nil {
		slog.Error("country lookup failed", "ip", raw, "error", err)
		c.JSON(http.StatusInternalServerError, CountryResponse{
			IP:    raw,
			Error: "lookup failed",
		})
		return
	}

	c.JSON(http.StatusOK, CountryResponse{
		IP:      raw,
		Country: &country,
	})
}
