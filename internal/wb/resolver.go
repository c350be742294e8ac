package wb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/huligan-sport/wb-price-bot/internal/models"
)

const (
	hostCount = 100

	userAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

	defaultBasketURLFormat = "https://basket-%s.wbbasket.ru"
	defaultDetailURL       = "https://card.wb.ru/cards/v4/detail?appType=1&curr=rub&dest=123585822&spp=30&hide_dtype=13&ab_testid=no_reranking&lang=ru"
	defaultStaticImageURL  = "https://images.wbstatic.net"
)

// Config controls the resolver's upstream endpoints and timeouts. Zero values
// fall back to the production Wildberries endpoints; tests point the URL fields
// at httptest servers.
type Config struct {
	// BasketURLFormat is the content-host base URL with a %s placeholder for
	// the two-digit host token.
	BasketURLFormat string
	// DetailURL is the live inventory endpoint; the article is appended as the
	// nm query parameter.
	DetailURL string
	// StaticImageURL is the legacy static asset host.
	StaticImageURL string
	ProbeTimeout   time.Duration
	FetchTimeout   time.Duration
}

// Resolver turns an article into normalized product data by discovering the
// content host that shards the product's card document, reconciling it against
// the live inventory API, and locating a servable image.
type Resolver struct {
	cache *HostCache
	cfg   Config

	// fetch handles the detail and price-history endpoints with retries.
	// probe handles single-shot card probing: the host loop is its own retry.
	// head handles lightweight image existence checks.
	fetch *retryablehttp.Client
	probe *http.Client
	head  *http.Client
}

func New(cache *HostCache, cfg Config) *Resolver {
	if cfg.BasketURLFormat == "" {
		cfg.BasketURLFormat = defaultBasketURLFormat
	}
	if cfg.DetailURL == "" {
		cfg.DetailURL = defaultDetailURL
	}
	if cfg.StaticImageURL == "" {
		cfg.StaticImageURL = defaultStaticImageURL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}

	fetch := retryablehttp.NewClient()
	fetch.RetryMax = 2
	fetch.RetryWaitMin = 500 * time.Millisecond
	fetch.RetryWaitMax = 2 * time.Second
	fetch.HTTPClient.Timeout = cfg.FetchTimeout
	fetch.Logger = nil

	return &Resolver{
		cache: cache,
		cfg:   cfg,
		fetch: fetch,
		probe: &http.Client{Timeout: cfg.FetchTimeout},
		head:  &http.Client{Timeout: cfg.ProbeTimeout},
	}
}

// cardDocument is the shard-hosted product metadata. Only the fields the
// resolver needs; the upstream document carries much more.
type cardDocument struct {
	ImtName string `json:"imt_name"`
	Selling struct {
		BrandName string `json:"brand_name"`
	} `json:"selling"`
}

// detailInfo is the reconciled view of the live inventory response.
type detailInfo struct {
	listed   bool
	quantity int
	price    float64
	rating   float64
	imageURL string
}

// Resolve locates the product's card document, cross-validates it against the
// live inventory API and returns a normalized result or a typed failure. The
// only side effect is a host-cache update; every step is idempotent and safe
// to retry.
func (r *Resolver) Resolve(ctx context.Context, article string) (*models.ResolvedProduct, error) {
	if err := models.ValidateArticle(article); err != nil {
		return nil, err
	}
	vol, part := models.Buckets(article)

	host, card := r.probeHosts(ctx, vol, part, article)
	detail, detailErr := r.fetchDetail(ctx, article)

	if card == nil {
		// No host served the card. The detail API decides whether this is a
		// plain miss, an out-of-stock product, or one the seller removed.
		if detailErr == nil {
			if !detail.listed {
				return nil, fmt.Errorf("article %s: %w", article, ErrProductRemoved)
			}
			if detail.quantity == 0 {
				return nil, fmt.Errorf("article %s: %w", article, errors.Join(ErrOutOfStock, ErrMetadataUnavailable))
			}
		}
		return nil, fmt.Errorf("article %s: %w", article, ErrMetadataUnavailable)
	}
	if card.ImtName == "" {
		return nil, fmt.Errorf("article %s: %w", article, ErrIncompleteMetadata)
	}
	if detailErr == nil && !detail.listed {
		return nil, fmt.Errorf("article %s: %w", article, ErrProductRemoved)
	}

	resolved := &models.ResolvedProduct{
		Name:     card.ImtName,
		Brand:    card.Selling.BrandName,
		ImageURL: r.resolveImage(ctx, host, vol, part, article),
	}

	if price, ok := r.latestHistoryPrice(ctx, host, vol, part, article); ok {
		resolved.Price = price
	}

	if detailErr != nil {
		slog.Warn("Live inventory data unavailable", "article", article, "error", detailErr)
		resolved.Warnings = append(resolved.Warnings, "Актуальные данные о наличии недоступны")
	} else {
		if detail.price > 0 {
			resolved.Price = detail.price
		}
		resolved.Quantity = detail.quantity
		resolved.Rating = detail.rating
		if detail.imageURL != "" && r.verifyImage(ctx, detail.imageURL) {
			resolved.ImageURL = detail.imageURL
		}
		if detail.quantity == 0 {
			resolved.Warnings = append(resolved.Warnings, "Товар отсутствует на складе")
		}
	}

	if resolved.Price == 0 {
		resolved.Warnings = append(resolved.Warnings, "Цена недоступна")
	}

	slog.Info("Resolved product", "article", article, "host", host, "price", resolved.Price, "quantity", resolved.Quantity)
	return resolved, nil
}

// hostTokens generates the full ordered host token sequence "01".."100".
func hostTokens() []string {
	tokens := make([]string, hostCount)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%02d", i+1)
	}
	return tokens
}

// candidateHosts orders the probe sequence: cached hint first, then all hosts
// ascending, deduplicated.
func (r *Resolver) candidateHosts(vol int) []string {
	tokens := hostTokens()
	hint, ok := r.cache.Get(vol)
	if !ok {
		return tokens
	}
	ordered := make([]string, 0, len(tokens)+1)
	ordered = append(ordered, hint)
	for _, t := range tokens {
		if t != hint {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// probeHosts walks the candidate hosts sequentially and returns the first one
// serving a parseable card document. Sequential on purpose: fanning out across
// a hundred hosts per resolution would hammer the upstream.
func (r *Resolver) probeHosts(ctx context.Context, vol, part int, article string) (string, *cardDocument) {
	for _, host := range r.candidateHosts(vol) {
		if ctx.Err() != nil {
			return "", nil
		}
		card, err := r.fetchCard(ctx, host, vol, part, article)
		if err != nil {
			continue
		}
		r.cache.Put(vol, host)
		return host, card
	}
	return "", nil
}

func (r *Resolver) basketURL(host string, vol, part int, article, suffix string) string {
	return fmt.Sprintf(r.cfg.BasketURLFormat, host) + fmt.Sprintf("/vol%d/part%d/%s/%s", vol, part, article, suffix)
}

func (r *Resolver) fetchCard(ctx context.Context, host string, vol, part int, article string) (*cardDocument, error) {
	url := r.basketURL(host, vol, part, article, "info/ru/card.json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req.Header, article)

	resp, err := r.probe.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("card request %s: status %d", url, resp.StatusCode)
	}

	var card cardDocument
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("card request %s: %w", url, err)
	}
	return &card, nil
}

// latestHistoryPrice fetches the shard-hosted price history and returns the
// most recent price in rubles. Failures degrade to (0, false): the detail API
// is the authoritative price source anyway.
func (r *Resolver) latestHistoryPrice(ctx context.Context, host string, vol, part int, article string) (float64, bool) {
	url := r.basketURL(host, vol, part, article, "info/price-history.json")
	body, err := r.get(ctx, url, article)
	if err != nil {
		slog.Warn("Price history unavailable", "article", article, "error", err)
		return 0, false
	}

	var history []struct {
		Price struct {
			RUB int64 `json:"RUB"`
		} `json:"price"`
	}
	if err := json.Unmarshal(body, &history); err != nil || len(history) == 0 {
		return 0, false
	}
	return float64(history[len(history)-1].Price.RUB) / 100, true
}

// fetchDetail queries the live inventory API. listed=false is the removal
// signature: a well-formed response whose products list no longer carries the
// article.
func (r *Resolver) fetchDetail(ctx context.Context, article string) (*detailInfo, error) {
	url := r.cfg.DetailURL + "&nm=" + article
	body, err := r.get(ctx, url, article)
	if err != nil {
		return nil, err
	}

	products := gjson.GetBytes(body, "products")
	if !products.IsArray() {
		return nil, fmt.Errorf("detail response for %s: no products array", article)
	}

	info := &detailInfo{}
	for _, product := range products.Array() {
		if product.Get("id").String() != article {
			continue
		}
		info.listed = true
		info.quantity = int(product.Get("totalQuantity").Int())
		info.rating = product.Get("reviewRating").Float()
		if p := product.Get("sizes.0.price.product"); p.Exists() {
			info.price = p.Float() / 100
		}
		info.imageURL = product.Get("colors.0.big_photo").String()
		break
	}
	return info, nil
}

// resolveImage walks the ordered image URL conventions and returns the first
// one that actually serves, or "" when none do. An absent image is not an
// error.
func (r *Resolver) resolveImage(ctx context.Context, host string, vol, part int, article string) string {
	candidates := []string{
		r.basketURL(host, vol, part, article, "images/big/1.webp"),
		r.basketURL(host, vol, part, article, "images/tm/1.webp"),
		fmt.Sprintf("%s/big/new/%d/%s-1.jpg", r.cfg.StaticImageURL, vol, article),
	}
	for _, url := range candidates {
		if r.verifyImage(ctx, url) {
			return url
		}
	}
	return ""
}

// verifyImage does a lightweight existence probe with a short timeout.
func (r *Resolver) verifyImage(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.head.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (r *Resolver) get(ctx context.Context, url, article string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req.Header, article)

	resp, err := r.fetch.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func setHeaders(h http.Header, article string) {
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "*/*")
	h.Set("Referer", "https://www.wildberries.ru/catalog/"+article+"/detail.aspx")
	h.Set("Origin", "https://www.wildberries.ru")
}
