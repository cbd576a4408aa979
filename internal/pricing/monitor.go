package pricing

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"homehub/internal/config"
	"homehub/internal/database"
	"homehub/internal/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// Monitor scrapes supplier sites for smart-home component prices.
type Monitor struct {
	db     *database.Database
	client *http.Client
	cfg    config.PricingConfig
}

func NewMonitor(db *database.Database, cfg *config.Config) *Monitor {
	return &Monitor{
		db: db,
		client: &http.Client{
			Timeout: cfg.Pricing.RequestTimeout,
		},
		cfg: cfg.Pricing,
	}
}

var priceRe = regexp.MustCompile(`£?([\d,]+\.?\d*)`)

func parsePrice(text string) (float64, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func (m *Monitor) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", m.cfg.UserAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func resolveLink(base string, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return base
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base
	}
	return baseURL.ResolveReference(ref).String()
}

// scrapeAmazonUK returns up to 5 offers from Amazon UK search results.
func (m *Monitor) scrapeAmazonUK(ctx context.Context, component string) []models.ComponentPrice {
	searchURL := "https://www.amazon.co.uk/s?k=" + url.QueryEscape(component)

	doc, err := m.fetch(ctx, searchURL)
	if err != nil {
		log.Printf("[Pricing] Amazon UK fetch failed for %q: %v", component, err)
		return nil
	}

	var prices []models.ComponentPrice
	doc.Find(`div[data-component-type="s-search-result"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(prices) >= 5 {
			return false
		}

		name := strings.TrimSpace(s.Find("h2").First().Text())
		if name == "" {
			return true
		}

		price, ok := parsePrice(s.Find("span.a-price-whole").First().Text())
		if !ok {
			return true
		}

		link := searchURL
		if href, exists := s.Find("h2 a").First().Attr("href"); exists {
			link = resolveLink("https://www.amazon.co.uk", href)
		}

		availability := "In Stock"
		if strings.Contains(strings.ToLower(s.Text()), "out of stock") ||
			strings.Contains(strings.ToLower(s.Text()), "unavailable") {
			availability = "Out of Stock"
		}

		prices = append(prices, models.ComponentPrice{
			Component:    component,
			Name:         name,
			Price:        price,
			Currency:     "GBP",
			Supplier:     "Amazon UK",
			URL:          link,
			Availability: availability,
			LastUpdated:  time.Now(),
		})
		return true
	})

	return prices
}

// scrapeCurrys returns up to 3 offers from Currys search results.
func (m *Monitor) scrapeCurrys(ctx context.Context, component string) []models.ComponentPrice {
	searchURL := "https://www.currys.co.uk/search?q=" + url.QueryEscape(component)

	doc, err := m.fetch(ctx, searchURL)
	if err != nil {
		log.Printf("[Pricing] Currys fetch failed for %q: %v", component, err)
		return nil
	}

	var prices []models.ComponentPrice
	doc.Find("article.product-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(prices) >= 3 {
			return false
		}

		name := strings.TrimSpace(s.Find("h3").First().Text())
		if name == "" {
			return true
		}

		price, ok := parsePrice(s.Find("span.price").First().Text())
		if !ok {
			return true
		}

		link := searchURL
		if href, exists := s.Find("a").First().Attr("href"); exists {
			link = resolveLink("https://www.currys.co.uk", href)
		}

		prices = append(prices, models.ComponentPrice{
			Component:    component,
			Name:         name,
			Price:        price,
			Currency:     "GBP",
			Supplier:     "Currys",
			URL:          link,
			Availability: "Check Website",
			LastUpdated:  time.Now(),
		})
		return true
	})

	return prices
}

// CheckComponent scrapes all suppliers for one component and persists the
// offers.
func (m *Monitor) CheckComponent(ctx context.Context, component string) ([]models.ComponentPrice, error) {
	prices := m.scrapeAmazonUK(ctx, component)

	// Politeness delay between supplier requests
	select {
	case <-time.After(m.cfg.RequestDelay):
	case <-ctx.Done():
		return prices, ctx.Err()
	}

	prices = append(prices, m.scrapeCurrys(ctx, component)...)

	if err := m.db.SaveComponentPrices(prices); err != nil {
		return prices, fmt.Errorf("failed to store prices: %w", err)
	}
	return prices, nil
}

// CheckComponents scrapes all suppliers for each component, bounded by the
// configured concurrency.
func (m *Monitor) CheckComponents(ctx context.Context, components []string) (map[string][]models.ComponentPrice, error) {
	results := make(map[string][]models.ComponentPrice, len(components))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrent)

	type result struct {
		component string
		prices    []models.ComponentPrice
	}
	ch := make(chan result, len(components))

	for _, component := range components {
		component := component
		g.Go(func() error {
			prices, err := m.CheckComponent(gctx, component)
			if err != nil {
				log.Printf("[Pricing] Check failed for %q: %v", component, err)
			}
			ch <- result{component: component, prices: prices}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(ch)

	for r := range ch {
		results[r.component] = r.prices
	}
	return results, nil
}

// BestPrices returns the cheapest stored offers for a component.
func (m *Monitor) BestPrices(component string, limit int) ([]models.ComponentPrice, error) {
	if limit <= 0 {
		limit = 5
	}
	return m.db.GetBestPrices(component, limit)
}
