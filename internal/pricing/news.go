package pricing

import (
	"context"
	"log"
	"strings"
	"time"

	"homehub/internal/database"
	"homehub/internal/models"

	"github.com/PuerkitoBio/goquery"
)

var relevanceKeywords = []string{
	"smart home", "iot", "automation", "ai", "machine learning",
	"raspberry pi", "arduino", "diy", "maker", "electronics",
}

type newsSource struct {
	Name string
	URL  string
}

var defaultNewsSources = []newsSource{
	{Name: "TechCrunch", URL: "https://techcrunch.com/category/hardware/"},
	{Name: "The Verge", URL: "https://www.theverge.com/tech"},
}

// NewsMonitor scrapes tech news sources and ranks articles by smart-home
// relevance.
type NewsMonitor struct {
	db      *database.Database
	monitor *Monitor
	sources []newsSource
}

func NewNewsMonitor(db *database.Database, monitor *Monitor) *NewsMonitor {
	return &NewsMonitor{
		db:      db,
		monitor: monitor,
		sources: defaultNewsSources,
	}
}

// relevanceScore is the fraction of watch keywords present in the text.
func relevanceScore(title, summary string) float64 {
	text := strings.ToLower(title + " " + summary)
	hits := 0
	for _, kw := range relevanceKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(relevanceKeywords))
}

// Collect scrapes all sources and stores the articles, deduped by URL.
func (nm *NewsMonitor) Collect(ctx context.Context) (int, error) {
	collected := 0
	for _, source := range nm.sources {
		items := nm.scrapeSource(ctx, source)
		for i := range items {
			if err := nm.db.SaveNewsItem(&items[i]); err != nil {
				log.Printf("[News] Failed to store %q: %v", items[i].Title, err)
				continue
			}
			collected++
		}

		select {
		case <-time.After(nm.monitor.cfg.RequestDelay):
		case <-ctx.Done():
			return collected, ctx.Err()
		}
	}
	return collected, nil
}

// scrapeSource extracts up to 5 articles from one source page.
func (nm *NewsMonitor) scrapeSource(ctx context.Context, source newsSource) []models.NewsItem {
	doc, err := nm.monitor.fetch(ctx, source.URL)
	if err != nil {
		log.Printf("[News] Fetch failed for %s: %v", source.Name, err)
		return nil
	}

	var items []models.NewsItem
	doc.Find("article").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(items) >= 5 {
			return false
		}

		title := strings.TrimSpace(s.Find("h1, h2, h3").First().Text())
		if title == "" {
			return true
		}

		href, exists := s.Find("a").First().Attr("href")
		if !exists {
			return true
		}
		link := resolveLink(source.URL, href)

		summary := strings.TrimSpace(s.Find("p").First().Text())

		items = append(items, models.NewsItem{
			Title:          title,
			Summary:        summary,
			URL:            link,
			Source:         source.Name,
			PublishedAt:    time.Now(),
			RelevanceScore: relevanceScore(title, summary),
		})
		return true
	})

	return items
}

// RelevantNews returns the highest-scoring stored articles.
func (nm *NewsMonitor) RelevantNews(limit int) ([]models.NewsItem, error) {
	if limit <= 0 {
		limit = 10
	}
	return nm.db.GetNews(limit)
}
