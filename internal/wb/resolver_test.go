package wb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const testArticle = "123456789" // vol 1234, part 123456

const testCard = `{"imt_name":"Кроссовки беговые","selling":{"brand_name":"Demix"}}`

const testHistory = `[{"dt":1700000000,"price":{"RUB":500}},{"dt":1710000000,"price":{"RUB":1000}}]`

func detailBody(quantity int) string {
	return fmt.Sprintf(`{"products":[{"id":123456789,"totalQuantity":%d,"reviewRating":4.5,"sizes":[{"price":{"product":95000}}]}]}`, quantity)
}

// upstream fakes every Wildberries endpoint behind one server, routing basket
// hosts by path prefix so host discovery can be exercised without DNS.
type upstream struct {
	mu       sync.Mutex
	cardHost string // host token serving card.json; "" means no host has it
	cardBody string
	history  string // "" means 404
	detail   string // "" means 404
	images   map[string]int
	probed   []string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/cards/detail"):
		if u.detail == "" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, u.detail)
	case strings.HasSuffix(path, "/info/ru/card.json"):
		host := hostFromPath(path)
		u.mu.Lock()
		u.probed = append(u.probed, host)
		u.mu.Unlock()
		if host != u.cardHost || u.cardBody == "" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, u.cardBody)
	case strings.HasSuffix(path, "/info/price-history.json"):
		if u.history == "" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, u.history)
	default:
		if status, ok := u.images[imageKey(path)]; ok {
			w.WriteHeader(status)
			return
		}
		http.NotFound(w, r)
	}
}

func (u *upstream) probedHosts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.probed...)
}

func hostFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/basket-")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i]
	}
	return rest
}

func imageKey(path string) string {
	switch {
	case strings.HasSuffix(path, "/images/big/1.webp"):
		return "big"
	case strings.HasSuffix(path, "/images/tm/1.webp"):
		return "tm"
	case strings.HasPrefix(path, "/static/"):
		return "static"
	case strings.HasPrefix(path, "/photos/"):
		return "photo"
	}
	return ""
}

func newTestResolver(t *testing.T, u *upstream) (*Resolver, *HostCache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(u)
	t.Cleanup(srv.Close)

	cache := LoadHostCache(filepath.Join(t.TempDir(), "host_cache.json"))
	r := New(cache, Config{
		BasketURLFormat: srv.URL + "/basket-%s",
		DetailURL:       srv.URL + "/cards/detail?appType=1",
		StaticImageURL:  srv.URL + "/static",
		ProbeTimeout:    2 * time.Second,
		FetchTimeout:    2 * time.Second,
	})
	return r, cache, srv
}

func TestResolve_InvalidArticle(t *testing.T) {
	u := &upstream{}
	r, _, _ := newTestResolver(t, u)

	if _, err := r.Resolve(context.Background(), "12ab"); err == nil {
		t.Fatal("expected validation error")
	}
	if len(u.probedHosts()) != 0 {
		t.Errorf("no host should be probed for an invalid article, probed %v", u.probedHosts())
	}
}

func TestResolve_MergesHistoryAndDetail(t *testing.T) {
	u := &upstream{
		cardHost: "03",
		cardBody: testCard,
		history:  testHistory,
		detail:   detailBody(5),
		images:   map[string]int{"big": http.StatusOK},
	}
	r, cache, srv := newTestResolver(t, u)

	p, err := r.Resolve(context.Background(), testArticle)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Name != "Кроссовки беговые" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Brand != "Demix" {
		t.Errorf("Brand = %q", p.Brand)
	}
	// Live inventory price (95000 kopecks) wins over the 10.00 history price.
	if p.Price != 950 {
		t.Errorf("Price = %v, want 950", p.Price)
	}
	if p.Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", p.Quantity)
	}
	if p.Rating != 4.5 {
		t.Errorf("Rating = %v, want 4.5", p.Rating)
	}
	if len(p.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", p.Warnings)
	}
	want := srv.URL + "/basket-03/vol1234/part123456/123456789/images/big/1.webp"
	if p.ImageURL != want {
		t.Errorf("ImageURL = %q, want %q", p.ImageURL, want)
	}
	if host, ok := cache.Get(1234); !ok || host != "03" {
		t.Errorf("cache entry for vol 1234 = %q, %v; want 03", host, ok)
	}
}

func TestResolve_StaleHintFallsThrough(t *testing.T) {
	u := &upstream{
		cardHost: "47",
		cardBody: testCard,
		detail:   detailBody(3),
	}
	r, cache, _ := newTestResolver(t, u)
	cache.Put(1234, "01")

	if _, err := r.Resolve(context.Background(), testArticle); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	probed := u.probedHosts()
	if len(probed) == 0 || probed[0] != "01" {
		t.Fatalf("stale hint should be probed first, got %v", probed)
	}
	if probed[len(probed)-1] != "47" {
		t.Errorf("probing should stop at the serving host, got %v", probed)
	}
	if host, _ := cache.Get(1234); host != "47" {
		t.Errorf("cache should be refreshed to 47, got %q", host)
	}
}

func TestResolve_HistoryPriceWhenInventoryDown(t *testing.T) {
	u := &upstream{
		cardHost: "01",
		cardBody: testCard,
		history:  testHistory,
	}
	r, _, _ := newTestResolver(t, u)

	p, err := r.Resolve(context.Background(), testArticle)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Price != 10 {
		t.Errorf("Price = %v, want 10 from history", p.Price)
	}
	if !hasWarning(p.Warnings, "Актуальные данные о наличии недоступны") {
		t.Errorf("expected stale-inventory warning, got %v", p.Warnings)
	}
}

func TestResolve_ZeroStockWithMetadata(t *testing.T) {
	u := &upstream{
		cardHost: "01",
		cardBody: testCard,
		detail:   detailBody(0),
	}
	r, _, _ := newTestResolver(t, u)

	p, err := r.Resolve(context.Background(), testArticle)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Quantity != 0 {
		t.Errorf("Quantity = %d, want 0", p.Quantity)
	}
	if !hasWarning(p.Warnings, "Товар отсутствует на складе") {
		t.Errorf("expected out-of-stock warning, got %v", p.Warnings)
	}
}

func TestResolve_OutOfStockWithoutMetadata(t *testing.T) {
	u := &upstream{detail: detailBody(0)}
	r, _, _ := newTestResolver(t, u)

	_, err := r.Resolve(context.Background(), testArticle)
	if !errors.Is(err, ErrOutOfStock) {
		t.Errorf("error should match ErrOutOfStock, got %v", err)
	}
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Errorf("error should also match ErrMetadataUnavailable, got %v", err)
	}
}

func TestResolve_NothingReachable(t *testing.T) {
	u := &upstream{}
	r, _, _ := newTestResolver(t, u)

	_, err := r.Resolve(context.Background(), testArticle)
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Errorf("error should match ErrMetadataUnavailable, got %v", err)
	}
	if errors.Is(err, ErrOutOfStock) {
		t.Errorf("without inventory data the error must not claim out-of-stock: %v", err)
	}
}

func TestResolve_Removed(t *testing.T) {
	t.Run("no metadata", func(t *testing.T) {
		u := &upstream{detail: `{"products":[]}`}
		r, _, _ := newTestResolver(t, u)

		_, err := r.Resolve(context.Background(), testArticle)
		if !errors.Is(err, ErrProductRemoved) {
			t.Errorf("error should match ErrProductRemoved, got %v", err)
		}
	})

	t.Run("stale metadata still cached", func(t *testing.T) {
		u := &upstream{
			cardHost: "01",
			cardBody: testCard,
			detail:   `{"products":[]}`,
		}
		r, _, _ := newTestResolver(t, u)

		_, err := r.Resolve(context.Background(), testArticle)
		if !errors.Is(err, ErrProductRemoved) {
			t.Errorf("error should match ErrProductRemoved, got %v", err)
		}
	})
}

func TestResolve_IncompleteMetadata(t *testing.T) {
	u := &upstream{
		cardHost: "01",
		cardBody: `{"selling":{"brand_name":"Demix"}}`,
		detail:   detailBody(5),
	}
	r, _, _ := newTestResolver(t, u)

	_, err := r.Resolve(context.Background(), testArticle)
	if !errors.Is(err, ErrIncompleteMetadata) {
		t.Errorf("error should match ErrIncompleteMetadata, got %v", err)
	}
}

func TestResolve_ImageFallback(t *testing.T) {
	tests := []struct {
		name   string
		images map[string]int
		want   string // image key expected in the final URL, "" for none
	}{
		{"big preferred", map[string]int{"big": 200, "tm": 200, "static": 200}, "big"},
		{"tm when big missing", map[string]int{"big": 404, "tm": 200, "static": 200}, "tm"},
		{"static last", map[string]int{"big": 404, "tm": 404, "static": 200}, "static"},
		{"no image anywhere", map[string]int{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &upstream{
				cardHost: "01",
				cardBody: testCard,
				detail:   detailBody(2),
				images:   tt.images,
			}
			r, _, _ := newTestResolver(t, u)

			p, err := r.Resolve(context.Background(), testArticle)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if tt.want == "" {
				if p.ImageURL != "" {
					t.Errorf("ImageURL = %q, want empty", p.ImageURL)
				}
				return
			}
			if imageKey(strings.TrimPrefix(p.ImageURL, srvURLPrefix(p.ImageURL))) != tt.want {
				t.Errorf("ImageURL = %q, want %s variant", p.ImageURL, tt.want)
			}
		})
	}
}

func TestResolve_PrefersLivePhoto(t *testing.T) {
	u := &upstream{
		cardHost: "01",
		cardBody: testCard,
		images:   map[string]int{"big": 200, "photo": 200},
	}
	r, _, srv := newTestResolver(t, u)
	u.detail = fmt.Sprintf(`{"products":[{"id":123456789,"totalQuantity":2,"colors":[{"big_photo":"%s/photos/123456789.webp"}]}]}`, srv.URL)

	p, err := r.Resolve(context.Background(), testArticle)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.Contains(p.ImageURL, "/photos/") {
		t.Errorf("ImageURL = %q, want the live inventory photo", p.ImageURL)
	}
}

// srvURLPrefix strips a URL down to its path for imageKey classification.
func srvURLPrefix(url string) string {
	i := strings.Index(url, "://")
	if i < 0 {
		return ""
	}
	j := strings.Index(url[i+3:], "/")
	if j < 0 {
		return url
	}
	return url[:i+3+j]
}

func hasWarning(warnings []string, want string) bool {
	for _, w := range warnings {
		if w == want {
			return true
		}
	}
	return false
}
