package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apphttp "github.com/prisvakt/compliance-service/internal/http"
	"github.com/prisvakt/compliance-service/internal/http/ratelimit"
)

const (
	accessTokenHeader = "X-Shopify-Access-Token"
	pageSize          = 250
)

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// Config configures the admin API client
type Config struct {
	APIVersion string
	// BaseURL replaces https://<shop> when set.
	BaseURL   string
	RateLimit ratelimit.Config
	Timeout   time.Duration
	// OnRetry is called before every retried request.
	OnRetry func(reason string)
}

// Client fetches variants from the admin API of any shop
type Client struct {
	http       *apphttp.Client
	apiVersion string
	baseURL    string
	logger     *zerolog.Logger
}

// NewClient creates an admin API client
func NewClient(cfg Config, logger *zerolog.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-10"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "commerce").Logger()
	httpClient := apphttp.NewClient(cfg.RateLimit, cfg.Timeout)
	if cfg.OnRetry != nil {
		httpClient.OnRetry(cfg.OnRetry)
	}
	return &Client{
		http:       httpClient,
		apiVersion: cfg.APIVersion,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     &l,
	}
}

// ListVariants returns every variant of every product in the shop, following
// cursor pagination
func (c *Client) ListVariants(ctx context.Context, shop, accessToken string) ([]Variant, error) {
	next := fmt.Sprintf("%s/products.json?limit=%d&fields=id,title,variants", c.apiRoot(shop), pageSize)
	variants := make([]Variant, 0)
	pages := 0

	for next != "" {
		var page productsResponse
		link, err := c.getJSON(ctx, next, accessToken, &page)
		if err != nil {
			return nil, err
		}
		pages++

		for _, p := range page.Products {
			for _, v := range p.Variants {
				if v.ProductID == 0 {
					v.ProductID = p.ID
				}
				variants = append(variants, v.toVariant(p.Title))
			}
		}
		next = parseNextLink(link)
	}

	c.logger.Debug().
		Str("shop", shop).
		Int("pages", pages).
		Int("variants", len(variants)).
		Msg("Listed variants")
	return variants, nil
}

// GetVariant returns a single variant
func (c *Client) GetVariant(ctx context.Context, shop, accessToken, variantID string) (*Variant, error) {
	var resp variantResponse
	endpoint := fmt.Sprintf("%s/variants/%s.json", c.apiRoot(shop), url.PathEscape(variantID))
	if _, err := c.getJSON(ctx, endpoint, accessToken, &resp); err != nil {
		return nil, err
	}
	v := resp.Variant.toVariant("")
	return &v, nil
}

func (c *Client) apiRoot(shop string) string {
	base := c.baseURL
	if base == "" {
		base = "https://" + shop
	}
	return fmt.Sprintf("%s/admin/api/%s", base, c.apiVersion)
}

// getJSON decodes the response body into out and returns the Link header
func (c *Client) getJSON(ctx context.Context, endpoint, accessToken string, out any) (string, error) {
	resp, err := c.http.Get(ctx, endpoint, http.Header{accessTokenHeader: []string{accessToken}})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return resp.Header.Get("Link"), nil
}

func parseNextLink(header string) string {
	if m := nextLinkPattern.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	return ""
}
