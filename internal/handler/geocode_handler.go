package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/geocode"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

type geocoder interface {
	Search(ctx context.Context, address string) (geocode.Result, error)
	Reverse(ctx context.Context, lat, lon float64) (geocode.Result, error)
}

// GeocodeHandler proxies address lookups. Upstream failures come back as ok=false.
type GeocodeHandler struct {
	client geocoder
}

// NewGeocodeHandler constructs the handler.
func NewGeocodeHandler(client geocoder) *GeocodeHandler {
	return &GeocodeHandler{client: client}
}

// Search godoc
// @Summary Geocode an address
// @Tags Geocoding
// @Produce json
// @Param q query string true "Address"
// @Success 200 {object} response.Envelope
// @Router /geocode/search [get]
func (h *GeocodeHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "q is required"))
		return
	}
	result, err := h.client.Search(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reverse godoc
// @Summary Reverse geocode coordinates
// @Tags Geocoding
// @Produce json
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Success 200 {object} response.Envelope
// @Router /geocode/reverse [get]
func (h *GeocodeHandler) Reverse(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lat and lon must be valid coordinates"))
		return
	}
	result, err := h.client.Reverse(c.Request.Context(), lat, lon)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
