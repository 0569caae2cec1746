package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultSearchResults = 5
	maxSearchResults     = 10
	searchUserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a class="result__snippet[^"]*".*?>([\s\S]*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

// SearchTool searches the web through the DuckDuckGo HTML endpoint.
type SearchTool struct {
	client  *http.Client
	baseURL string
}

func NewSearchTool() *SearchTool {
	return &SearchTool{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://html.duckduckgo.com/html/",
	}
}

func (t *SearchTool) Name() string { return "search_web" }

func (t *SearchTool) Description() string {
	return "Search the web for current events, news, facts, and general information."
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query (e.g. 'President of Ukraine', 'weather in Kyiv', 'latest tech news')",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (default: 5)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any, _ Caller) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return Failed("query is required")
	}

	count := defaultSearchResults
	if c, ok := args["max_results"].(float64); ok && int(c) >= 1 && int(c) <= maxSearchResults {
		count = int(c)
	}

	results, err := t.search(ctx, query, count)
	if err != nil {
		return Failed(fmt.Sprintf("Search failed: %v", err))
	}
	if len(results) == 0 {
		return OK("No results found.")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔍 Results for '%s':\n\n", query))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. [%s](%s)\n   %s\n\n", i+1, r.Title, r.URL, r.Description))
	}
	return OKData(strings.TrimRight(sb.String(), "\n"), results)
}

type searchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (t *SearchTool) search(ctx context.Context, query string, count int) ([]searchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return extractSearchResults(string(body), count), nil
}

func extractSearchResults(html string, count int) []searchResult {
	linkMatches := ddgLinkRe.FindAllStringSubmatch(html, count+5)
	if len(linkMatches) == 0 {
		return nil
	}
	snippetMatches := ddgSnippetRe.FindAllStringSubmatch(html, count+5)

	var results []searchResult
	for i := 0; i < len(linkMatches) && i < count; i++ {
		rawURL := linkMatches[i][1]
		title := strings.TrimSpace(htmlTagRe.ReplaceAllString(linkMatches[i][2], ""))

		// DDG wraps result links in a redirect; the real URL is in uddg=.
		if strings.Contains(rawURL, "uddg=") {
			if u, err := url.QueryUnescape(rawURL); err == nil {
				if idx := strings.Index(u, "uddg="); idx != -1 {
					extracted := u[idx+5:]
					if ampIdx := strings.Index(extracted, "&"); ampIdx != -1 {
						extracted = extracted[:ampIdx]
					}
					rawURL = extracted
				}
			}
		}

		desc := ""
		if i < len(snippetMatches) {
			desc = strings.TrimSpace(htmlTagRe.ReplaceAllString(snippetMatches[i][1], ""))
		}

		results = append(results, searchResult{Title: title, URL: rawURL, Description: desc})
	}
	return results
}
