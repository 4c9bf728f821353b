// Package docs searches official documentation sites. It is the designated
// authoritative source: scoped to configured doc domains, scraped with
// goquery.
package docs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/askroute/backend/pkg/logger"
)

type Client struct {
	sites      []string
	maxResults int
	httpClient *http.Client
}

type Result struct {
	Title   string
	URL     string
	Snippet string
	Content string
}

func NewClient(sites []string, maxResults, timeoutSec int) *Client {
	return &Client{
		sites:      sites,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Search restricts the web query to the configured documentation sites and
// scrapes each hit's page body for detail.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	scoped := c.scopedQuery(query)
	searchURL := fmt.Sprintf("https://www.google.com/search?q=%s&num=%d",
		url.QueryEscape(scoped), c.maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search docs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docs search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	results := make([]Result, 0)
	doc.Find("div.g").Each(func(i int, s *goquery.Selection) {
		if i >= c.maxResults {
			return
		}

		title := s.Find("h3").Text()
		link, _ := s.Find("a").Attr("href")
		snippet := s.Find("div.VwiC3b").Text()

		if title == "" || link == "" {
			return
		}

		content, err := c.scrape(ctx, link)
		if err != nil {
			content = snippet
		}

		results = append(results, Result{
			Title:   title,
			URL:     link,
			Snippet: snippet,
			Content: content,
		})
	})

	logger.Info("Docs search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func (c *Client) scopedQuery(query string) string {
	scopes := make([]string, 0, len(c.sites))
	for _, site := range c.sites {
		scopes = append(scopes, "site:"+site)
	}
	return strings.Join(scopes, " OR ") + " " + query
}

func (c *Client) scrape(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header").Remove()
	text := strings.TrimSpace(doc.Find("main").Text())
	if text == "" {
		text = strings.TrimSpace(doc.Find("body").Text())
	}

	if len(text) > 5000 {
		text = text[:5000]
	}
	return text, nil
}
