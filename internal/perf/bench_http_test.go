package perf

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/paroquia-cms/paroquia-cms/internal/entities"
	"github.com/paroquia-cms/paroquia-cms/internal/rbac"
	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	resourcehttp "github.com/paroquia-cms/paroquia-cms/internal/resource/http"
)

const seededBirthdays = 2000

// newBirthdaysRouter serves the birthdays views over a seeded store. A nil
// client disables the view cache.
func newBirthdaysRouter(tb testing.TB, client *redis.Client) http.Handler {
	tb.Helper()
	registry, err := entities.NewRegistry()
	if err != nil {
		tb.Fatalf("registry: %v", err)
	}
	d := registry.MustGet(entities.Birthdays)
	store := resource.NewMemoryStore(nil)
	for i := 0; i < seededBirthdays; i++ {
		store.Seed(d, resource.Record{
			"name":        fmt.Sprintf("Paroquiano %04d", i),
			"birth_date":  time.Date(1950+i%50, time.Month(i%12+1), i%28+1, 0, 0, 0, 0, time.UTC),
			"community":   fmt.Sprintf("Comunidade %d", i%7),
			"is_active":   i%10 != 0,
			"order_index": int64(0),
		})
	}
	handler := resourcehttp.NewHandler(d, resourcehttp.Deps{
		Engine: resource.NewEngine(store),
		RBAC:   rbac.Middleware{Service: rbac.NewService()},
		Cache:  resourcehttp.NewViewCache(client, time.Minute, nil, nil),
	})
	r := chi.NewRouter()
	r.Route("/birthdays", handler.MountRoutes)
	return r
}

func serve(tb testing.TB, h http.Handler, path string) time.Duration {
	tb.Helper()
	start := time.Now()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	elapsed := time.Since(start)
	if rr.Code != http.StatusOK {
		tb.Fatalf("GET %s: status %d", path, rr.Code)
	}
	return elapsed
}

func TestViewLatencyTargets(t *testing.T) {
	if testing.Short() {
		t.Skip("latency sampling skipped in short mode")
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	scenarios := []struct {
		name      string
		router    http.Handler
		threshold time.Duration
	}{
		{name: "cached", router: newBirthdaysRouter(t, client), threshold: 250 * time.Millisecond},
		{name: "cold", router: newBirthdaysRouter(t, nil), threshold: 500 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 20)
		for i := 0; i < 20; i++ {
			samples = append(samples, serve(t, scenario.router, "/birthdays/this-month?limit=100"))
		}
		p95 := percentile95(samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkBirthdaysThisMonthCold(b *testing.B) {
	router := newBirthdaysRouter(b, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serve(b, router, "/birthdays/this-month")
	}
}

func BenchmarkBirthdaysThisMonthCached(b *testing.B) {
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = client.Close() })
	router := newBirthdaysRouter(b, client)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serve(b, router, "/birthdays/this-month")
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func TestPercentile95(t *testing.T) {
	samples := []time.Duration{}
	for i := 1; i <= 20; i++ {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	if got := percentile95(samples); got != 19*time.Millisecond {
		t.Fatalf("p95 = %s", got)
	}
	if got := percentile95(nil); got != 0 {
		t.Fatalf("empty p95 = %s", got)
	}
}
