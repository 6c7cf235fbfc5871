package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matrischol-api/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GeocodingConfig{
		BaseURL:       srv.URL,
		UserAgent:     "matrischol-test",
		Timeout:       time.Second,
		MinImportance: 0.2,
	}, nil)
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "matrischol-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"lat":"6.2442","lon":"-75.5812","display_name":"Medellín, Antioquia","importance":0.7}]`))
	})

	res, err := client.Search(context.Background(), "Calle 10 # 5-20, Medellín")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.InDelta(t, 6.2442, res.Lat, 1e-6)
	assert.InDelta(t, -75.5812, res.Lon, 1e-6)
	assert.Equal(t, "Medellín, Antioquia", res.Address)
}

func TestSearchDiscardsLowImportance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"1","lon":"2","display_name":"x","importance":0.1}]`))
	})
	res, err := client.Search(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestSearchFailuresAreNotErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	res, err := client.Search(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.False(t, res.OK)

	res, err = client.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestReverse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "6.244200", r.URL.Query().Get("lat"))
		_, _ = w.Write([]byte(`{"lat":"6.2442","lon":"-75.5812","display_name":"Cra 50, Medellín"}`))
	})
	res, err := client.Reverse(context.Background(), 6.2442, -75.5812)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "Cra 50, Medellín", res.Address)
}

func TestReverseUnableToGeocode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	})
	res, err := client.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, res.OK)

	res, err = client.Reverse(context.Background(), 120, 0)
	require.NoError(t, err)
	assert.False(t, res.OK)
}
