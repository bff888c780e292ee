package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/cache"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

const scheduleBody = `{"trainNumber":"12951","stationList":[
 {"stationCode":"MMCT","stationName":"MUMBAI CENTRAL ","departureTime":"17:00","distance":"0","dayCount":"1"},
 {"stationCode":"NDLS","stationName":"NEW DELHI","arrivalTime":"08:32","distance":1386,"dayCount":2}
]}`

func seededCache() *cache.Cache {
	c := cache.New()
	c.SetCredentials(cache.DefaultIdentity, models.CapturedCredentials{
		UserToken: "tok-123",
		DSession:  "dsess",
		SessionID: "sid",
		Headers:   map[string]string{"X-Client": "disha-web"},
	})
	return c
}

func TestRouteReplaysCredentials(t *testing.T) {
	var got map[string]any
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Client")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(scheduleBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, seededCache(), nil, WithRate(rate.Inf, 1))
	route, err := c.Route(context.Background(), RouteRequest{
		TrainNumber: "12951", JourneyDate: "26-11-2025", StartingStationCode: "mmct",
	})
	require.NoError(t, err)

	assert.Equal(t, "disha-web", header)
	assert.Equal(t, "tok-123", got["userToken"])
	assert.Equal(t, "dsess", got["dSession"])
	assert.Equal(t, "sid", got["sessionId"])
	assert.Equal(t, "MMCT", got["startingStationCode"])
	assert.Equal(t, "26-11-2025", got["journeyDate"])

	require.Len(t, route.Stations, 2)
	assert.Equal(t, "MUMBAI CENTRAL", route.Stations[0].StationName)
	assert.Equal(t, "1386", route.Stations[1].Distance)
	assert.Equal(t, 2, route.Stations[1].Day)
}

func TestRouteWithoutCredentials(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", cache.New(), nil)
	_, err := c.Route(context.Background(), RouteRequest{
		TrainNumber: "12951", JourneyDate: "26-11-2025", StartingStationCode: "MMCT",
	})
	assert.Equal(t, apperr.CacheEmpty, apperr.KindOf(err))
}

func TestRouteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, seededCache(), nil, WithRate(rate.Inf, 1))
	_, err := c.Route(context.Background(), RouteRequest{
		TrainNumber: "12951", JourneyDate: "26-11-2025", StartingStationCode: "MMCT",
	})
	assert.Equal(t, apperr.Transport, apperr.KindOf(err))
	assert.Equal(t, http.StatusUnauthorized, apperr.DetailsOf(err)["status"])
}

func TestRouteValidation(t *testing.T) {
	c := NewClient("http://unused", seededCache(), nil)
	_, err := c.Route(context.Background(), RouteRequest{TrainNumber: "12951", JourneyDate: "tomorrow"})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestDecodeRouteNested(t *testing.T) {
	r := DecodeRoute("1", []byte(`{"data":{"stationList":[{"stationCode":"A"}]}}`))
	require.Len(t, r.Stations, 1)
	assert.Equal(t, "A", r.Stations[0].StationCode)

	r = DecodeRoute("1", []byte(`{"status":"ok"}`))
	assert.Empty(t, r.Stations)
	assert.NotEmpty(t, r.Raw)
}
