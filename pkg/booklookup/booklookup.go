package booklookup

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	redisPkg "Shelfscan/pkg/redis"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	defaultBaseURL = "https://www.googleapis.com/books/v1"
	cacheTTL       = 24 * time.Hour
)

// Record is the canonical bibliographic record merged into enrichment
// results. At most one record is returned per lookup.
type Record struct {
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Year      string `json:"year,omitempty"`
	Category  string `json:"category,omitempty"`
	ISBN      string `json:"isbn,omitempty"`
	CoverURL  string `json:"cover_url,omitempty"`
}

// ILookup queries an external bibliographic catalog. Best effort: a miss is
// (nil, nil), only transport or decoding failures return an error.
type ILookup interface {
	Lookup(ctx context.Context, title, author, isbn string) (*Record, error)
}

type client struct {
	baseURL    string
	httpClient *http.Client
	cache      redisPkg.ICache
	log        *logrus.Logger
}

func New(log *logrus.Logger, cache redisPkg.ICache) ILookup {
	return &client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: cache,
		log:   log,
	}
}

func (c *client) Lookup(ctx context.Context, title, author, isbn string) (*Record, error) {
	query := buildQuery(title, author, isbn)
	if query == "" {
		return nil, nil
	}

	if cached := c.fromCache(ctx, query); cached != nil {
		return cached, nil
	}

	record, err := c.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	c.toCache(ctx, query, record)

	return record, nil
}

// buildQuery prefers an ISBN query over free text.
func buildQuery(title, author, isbn string) string {
	if isbn != "" {
		return "isbn:" + isbn
	}
	return strings.TrimSpace(title + " " + author)
}

func (c *client) fetch(ctx context.Context, query string) (*Record, error) {
	searchURL := fmt.Sprintf("%s/volumes?q=%s&maxResults=1", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query book catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("book catalog returned status %d: %s", resp.StatusCode, string(body))
	}

	var volumes struct {
		TotalItems int `json:"totalItems"`
		Items      []struct {
			VolumeInfo struct {
				Title               string   `json:"title"`
				Authors             []string `json:"authors"`
				Publisher           string   `json:"publisher"`
				PublishedDate       string   `json:"publishedDate"`
				Categories          []string `json:"categories"`
				IndustryIdentifiers []struct {
					Type       string `json:"type"`
					Identifier string `json:"identifier"`
				} `json:"industryIdentifiers"`
				ImageLinks struct {
					Thumbnail string `json:"thumbnail"`
				} `json:"imageLinks"`
			} `json:"volumeInfo"`
		} `json:"items"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&volumes); err != nil {
		return nil, fmt.Errorf("failed to decode book catalog response: %w", err)
	}

	if len(volumes.Items) == 0 {
		return nil, nil
	}

	info := volumes.Items[0].VolumeInfo

	record := &Record{
		Title:     info.Title,
		Publisher: info.Publisher,
		Year:      publicationYear(info.PublishedDate),
		CoverURL:  info.ImageLinks.Thumbnail,
	}
	if len(info.Authors) > 0 {
		record.Author = info.Authors[0]
	}
	if len(info.Categories) > 0 {
		record.Category = info.Categories[0]
	}
	for _, id := range info.IndustryIdentifiers {
		record.ISBN = id.Identifier
		if id.Type == "ISBN_13" {
			break
		}
	}

	return record, nil
}

// publicationYear keeps only the year of dates like "2001-09-04".
func publicationYear(publishedDate string) string {
	if len(publishedDate) >= 4 {
		return publishedDate[:4]
	}
	return publishedDate
}

func (c *client) fromCache(ctx context.Context, query string) *Record {
	if c.cache == nil {
		return nil
	}

	raw, err := c.cache.GetLookup(ctx, cacheKey(query))
	if err != nil {
		return nil
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		c.log.WithFields(logrus.Fields{
			"query": query,
			"error": err.Error(),
		}).Warn("Discarding corrupt cached lookup")
		return nil
	}

	return &record
}

func (c *client) toCache(ctx context.Context, query string, record *Record) {
	if c.cache == nil || record == nil {
		return
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return
	}

	if err := c.cache.SetLookup(ctx, cacheKey(query), string(raw), cacheTTL); err != nil {
		c.log.WithFields(logrus.Fields{
			"query": query,
			"error": err.Error(),
		}).Warn("Failed to cache lookup result")
	}
}

func cacheKey(query string) string {
	return "booklookup:" + strings.ToLower(query)
}
