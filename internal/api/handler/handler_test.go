package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/viajejapon/planner/internal/api/middleware"
	"github.com/viajejapon/planner/internal/api/models"
	"github.com/viajejapon/planner/internal/featureflags"
	"github.com/viajejapon/planner/internal/geo"
	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/optimizer"
	"github.com/viajejapon/planner/internal/planner"
	"github.com/viajejapon/planner/internal/preference"
	"github.com/viajejapon/planner/internal/regeneration"
	"github.com/viajejapon/planner/internal/storage"
)

const testUser = "usr_tester"

type testEnv struct {
	planner *planner.Service
	flags   *featureflags.Service
	trips   *itinerary.StoreRepository
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithGenerator(t, nil)
}

// newTestEnvWithGenerator builds an environment whose regenerator uses gen;
// nil selects the placeholder generator.
func newTestEnvWithGenerator(t *testing.T, gen regeneration.Generator) testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
		CacheTTL:   time.Minute,
	})

	svc := planner.NewService(planner.ServiceConfig{
		Preferences: preference.NewService(preference.ServiceConfig{Store: store}),
		Optimizer:   optimizer.New(optimizer.Config{Seed: 7, Logger: zerolog.Nop()}),
		Regenerator: regeneration.New(regeneration.Config{Generator: gen, Logger: zerolog.Nop()}),
		History:     regeneration.NewHistoryStore(store),
		Flags:       flags,
		Logger:      zerolog.Nop(),
	})
	return testEnv{planner: svc, flags: flags, trips: itinerary.NewStoreRepository(store)}
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser attaches the authenticated user and chi URL parameters given as
// key/value pairs.
func asUser(req *http.Request, userID string, params ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middleware.WithUserID(ctx, userID))
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	return decodeBody[models.Problem](t, rec)
}

func stop(id string, lat, lng float64, category string) itinerary.Activity {
	return itinerary.Activity{
		ID:          id,
		Name:        "Stop " + id,
		Category:    category,
		City:        "Kyoto",
		Coordinates: &geo.Point{Lat: lat, Lng: lng},
		Duration:    60,
		Cost:        500,
	}
}

func seedTrip(t *testing.T, env testEnv, id, owner string) *itinerary.Trip {
	t.Helper()
	trip := &itinerary.Trip{
		ID:          id,
		UserID:      owner,
		Name:        "Kansai week",
		StartDate:   "2025-04-01",
		Preferences: itinerary.Preferences{Interests: []string{"culture"}, Budget: "moderate"},
		Hotel:       &itinerary.Activity{ID: "hotel", Name: "Hotel", Coordinates: &geo.Point{Lat: 34.985, Lng: 135.758}},
		Days: []itinerary.Day{
			{DayNumber: 1, City: "Kyoto", Activities: []itinerary.Activity{
				stop("a", 35.000, 135.760, "temple"),
				stop("b", 34.990, 135.780, "food"),
				stop("c", 35.010, 135.770, "shopping"),
			}},
			{DayNumber: 2, City: "Nara", Activities: []itinerary.Activity{
				stop("d", 34.685, 135.843, "temple"),
			}},
		},
	}
	require.NoError(t, env.trips.Save(context.Background(), trip))
	return trip
}
