// Package websearch 提供了联网搜索客户端（SearxNG），并对天气类提问做直达短路。
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"astra-chat-go/internal/config"
	"astra-chat-go/pkg/log"
)

const snippetMaxLen = 400

// Result 是一条搜索结果。
type Result struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Outcome 是一次搜索的类型化结果：成功（Results 非空）、空结果或失败。
// 调用方据此决定是否注入上下文块；失败绝不应阻断主流程。
type Outcome struct {
	Results []Result
	Err     error
}

// Client 定义了联网搜索的接口。
type Client interface {
	// Search 返回有界、按相关度排序的结果列表。
	Search(ctx context.Context, query string, maxResults int) Outcome
}

type smartClient struct {
	cfg    config.WebSearchConfig
	client *http.Client
}

// NewClient 根据配置创建一个新的搜索客户端。
func NewClient(cfg config.WebSearchConfig) Client {
	return &smartClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

var weatherRe = regexp.MustCompile(`\b(weather|temperature|forecast|rain|sunny|wind|humidity)\b`)

// IsWeatherQuery 判断提问是否属于天气类。
func IsWeatherQuery(q string) bool {
	return weatherRe.MatchString(strings.ToLower(q))
}

// Search 先尝试天气直达，再回退到 SearxNG。
func (c *smartClient) Search(ctx context.Context, query string, maxResults int) Outcome {
	if IsWeatherQuery(query) {
		if r := c.weatherLookup(ctx, query); r != nil {
			return Outcome{Results: []Result{*r}}
		}
		// 天气查询失败时回退到常规搜索
	}

	results, err := c.searxSearch(ctx, query, maxResults)
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Results: results}
}

type searxResponse struct {
	Results []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Content     string `json:"content"`
		Description string `json:"description"`
	} `json:"results"`
}

func (c *smartClient) searxSearch(ctx context.Context, query string, maxResults int) ([]Result, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&safesearch=1", c.cfg.SearxBase, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api returned non-200 status: %s", resp.Status)
	}

	var sr searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]Result, 0, maxResults)
	for i, raw := range sr.Results {
		if i >= maxResults {
			break
		}
		snippet := raw.Content
		if snippet == "" {
			snippet = raw.Description
		}
		if snippet == "" {
			snippet = raw.Title
		}
		snippet = strings.TrimSpace(strings.Join(strings.Fields(snippet), " "))
		if len(snippet) > snippetMaxLen {
			snippet = snippet[:snippetMaxLen] + "..."
		}
		title := raw.Title
		if title == "" {
			title = raw.URL
		}
		results = append(results, Result{
			ID:      i + 1,
			Title:   title,
			URL:     raw.URL,
			Snippet: snippet,
		})
	}
	return results, nil
}

type weatherResponse struct {
	CurrentWeather *struct {
		Temperature   float64 `json:"temperature"`
		WindSpeed     float64 `json:"windspeed"`
		WindDirection float64 `json:"winddirection"`
	} `json:"current_weather"`
}

// weatherLookup 对已配置的地点做当前天气直达。地点未知或调用失败时返回 nil。
func (c *smartClient) weatherLookup(ctx context.Context, query string) *Result {
	lower := strings.ToLower(query)
	var point *config.GeoPoint
	var name string
	for loc, gp := range c.cfg.Locations {
		if strings.Contains(lower, strings.ToLower(loc)) {
			p := gp
			point = &p
			name = loc
			break
		}
	}
	if point == nil {
		return nil
	}

	u := fmt.Sprintf("%s/v1/forecast?latitude=%.2f&longitude=%.2f&current_weather=true", c.cfg.WeatherAPI, point.Lat, point.Lon)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warnf("天气直达查询失败: %v", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var wr weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil || wr.CurrentWeather == nil {
		return nil
	}

	cur := wr.CurrentWeather
	return &Result{
		ID:    1,
		Title: fmt.Sprintf("Open-Meteo - %s current weather", name),
		URL:   u,
		Snippet: fmt.Sprintf("Current: %.1f°C, wind %.1f m/s, wind direction %.0f° (source: Open-Meteo).",
			cur.Temperature, cur.WindSpeed, cur.WindDirection),
	}
}
