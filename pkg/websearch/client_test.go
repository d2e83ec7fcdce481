package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"astra-chat-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWeatherQuery(t *testing.T) {
	assert.True(t, IsWeatherQuery("what is the weather in Beijing"))
	assert.True(t, IsWeatherQuery("Will it RAIN tomorrow?"))
	assert.True(t, IsWeatherQuery("current temperature in london"))
	assert.False(t, IsWeatherQuery("how do goroutines work"))
	// 必须是完整单词，weathering 不算
	assert.False(t, IsWeatherQuery("rock weathering process"))
}

func TestSearch_SearxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "go generics", r.URL.Query().Get("q"))
		w.Write([]byte(`{"results":[
			{"title":"Go generics","url":"https://go.dev/doc","content":"Type parameters in Go."},
			{"title":"","url":"https://example.com","description":"  spaced   out  "},
			{"title":"Third","url":"https://third"},
			{"title":"Fourth","url":"https://fourth"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(config.WebSearchConfig{SearxBase: srv.URL})
	out := c.Search(context.Background(), "go generics", 3)
	require.NoError(t, out.Err)
	require.Len(t, out.Results, 3)

	assert.Equal(t, 1, out.Results[0].ID)
	assert.Equal(t, "Go generics", out.Results[0].Title)
	assert.Equal(t, "Type parameters in Go.", out.Results[0].Snippet)

	// 空标题回退到 URL，空白折叠
	assert.Equal(t, "https://example.com", out.Results[1].Title)
	assert.Equal(t, "spaced out", out.Results[1].Snippet)

	// 摘录为空时回退到标题
	assert.Equal(t, "Third", out.Results[2].Snippet)
}

func TestSearch_SnippetTruncated(t *testing.T) {
	long := strings.Repeat("a", snippetMaxLen+100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"title":"T","url":"https://t","content":"` + long + `"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.WebSearchConfig{SearxBase: srv.URL})
	out := c.Search(context.Background(), "long", 5)
	require.NoError(t, out.Err)
	require.Len(t, out.Results, 1)
	assert.Len(t, out.Results[0].Snippet, snippetMaxLen+3)
	assert.True(t, strings.HasSuffix(out.Results[0].Snippet, "..."))
}

func TestSearch_ErrorOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(config.WebSearchConfig{SearxBase: srv.URL})
	out := c.Search(context.Background(), "anything", 5)
	assert.Error(t, out.Err)
	assert.Empty(t, out.Results)
}

func TestSearch_WeatherShortCircuit(t *testing.T) {
	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
		w.Write([]byte(`{"current_weather":{"temperature":21.5,"windspeed":3.2,"winddirection":180}}`))
	}))
	defer weather.Close()

	searxCalled := false
	searx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searxCalled = true
		w.Write([]byte(`{"results":[]}`))
	}))
	defer searx.Close()

	c := NewClient(config.WebSearchConfig{
		SearxBase:  searx.URL,
		WeatherAPI: weather.URL,
		Locations:  map[string]config.GeoPoint{"london": {Lat: 51.5, Lon: -0.13}},
	})

	out := c.Search(context.Background(), "weather in London today", 5)
	require.NoError(t, out.Err)
	require.Len(t, out.Results, 1)
	assert.Contains(t, out.Results[0].Snippet, "21.5°C")
	assert.Contains(t, out.Results[0].Snippet, "Open-Meteo")
	assert.False(t, searxCalled, "weather hit should not fall through to searx")
}

func TestSearch_WeatherUnknownLocationFallsBack(t *testing.T) {
	searx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"title":"Weather site","url":"https://w","content":"forecast page"}]}`))
	}))
	defer searx.Close()

	c := NewClient(config.WebSearchConfig{
		SearxBase: searx.URL,
		Locations: map[string]config.GeoPoint{"london": {Lat: 51.5, Lon: -0.13}},
	})

	out := c.Search(context.Background(), "weather in Atlantis", 5)
	require.NoError(t, out.Err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Weather site", out.Results[0].Title)
}
