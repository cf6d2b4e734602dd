// Package wakatime reads the coding-activity summaries of the current
// WakaTime user.
package wakatime

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"wakareadme/internal/remote"
)

// Resource names registered with the remote loader.
const (
	ResourceLatest  = "waka_latest"
	ResourceAllTime = "waka_all"
)

//go:embed stats.schema.json
var statsSchema string

const statsSchemaURL = "https://wakareadme.local/schemas/stats.schema.json"

// Item is one row of a stats breakdown (a language, editor, project or OS).
type Item struct {
	Name         string  `json:"name"`
	Text         string  `json:"text"`
	Percent      float64 `json:"percent"`
	TotalSeconds float64 `json:"total_seconds"`
}

type Stats struct {
	Range                     string  `json:"range"`
	Timezone                  string  `json:"timezone"`
	HumanReadableTotal        string  `json:"human_readable_total"`
	HumanReadableDailyAverage string  `json:"human_readable_daily_average"`
	TotalSeconds              float64 `json:"total_seconds"`
	IsCodingActivityVisible   bool    `json:"is_coding_activity_visible"`
	IsOtherUsageVisible       bool    `json:"is_other_usage_visible"`
	Languages                 []Item  `json:"languages"`
	Editors                   []Item  `json:"editors"`
	Projects                  []Item  `json:"projects"`
	OperatingSystems          []Item  `json:"operating_systems"`
}

type AllTime struct {
	Text         string  `json:"text"`
	TotalSeconds float64 `json:"total_seconds"`
}

// Resources returns the WakaTime endpoints to preload.
func Resources(baseURL, apiKey string) map[string]string {
	base := strings.TrimRight(baseURL, "/")
	key := url.QueryEscape(apiKey)
	return map[string]string{
		ResourceLatest:  base + "/users/current/stats/last_7_days?api_key=" + key,
		ResourceAllTime: base + "/users/current/all_time_since_today?api_key=" + key,
	}
}

type Client struct {
	loader *remote.Loader
	schema *jsonschema.Schema
}

func NewClient(loader *remote.Loader) (*Client, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(statsSchemaURL, strings.NewReader(statsSchema)); err != nil {
		return nil, fmt.Errorf("failed to load stats schema: %w", err)
	}
	schema, err := compiler.Compile(statsSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile stats schema: %w", err)
	}
	return &Client{loader: loader, schema: schema}, nil
}

// Stats returns the last 7 days summary. remote.ErrNotReady is returned while
// WakaTime is still computing it.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	body, err := c.loader.Raw(ctx, ResourceLatest)
	if err != nil {
		return nil, err
	}
	if err := c.validate(body); err != nil {
		return nil, err
	}

	var resp struct {
		Data Stats `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return &resp.Data, nil
}

func (c *Client) AllTime(ctx context.Context) (*AllTime, error) {
	var resp struct {
		Data AllTime `json:"data"`
	}
	if err := c.loader.JSON(ctx, ResourceAllTime, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) validate(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("stats response is not JSON: %w", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return fmt.Errorf("stats response schema validation failed: %w", err)
	}
	return nil
}
