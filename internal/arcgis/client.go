// Package arcgis is a minimal client for ArcGIS feature-service REST
// layers: layer metadata (describe) and attribute-only queries. Geometry is
// never requested.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Field describes one attribute field of a feature layer.
type Field struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

// LayerInfo is the schema metadata of a feature layer.
type LayerInfo struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	GeometryType   string  `json:"geometry_type"`
	ObjectIDField  string  `json:"object_id_field"`
	MaxRecordCount int     `json:"max_record_count"`
	Fields         []Field `json:"fields"`
}

// Client issues requests against ArcGIS feature-service layer URLs. With an
// empty API key it runs anonymously, which public layers accept.
type Client struct {
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client. apiKey may be empty for anonymous access.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// serviceError is the error object ArcGIS returns inside a 200 response.
type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Describe fetches schema metadata for the layer at layerURL.
func (c *Client) Describe(ctx context.Context, layerURL string) (*LayerInfo, error) {
	params := url.Values{}
	body, err := c.get(ctx, layerURL, params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Error          *serviceError `json:"error"`
		Name           string        `json:"name"`
		Description    string        `json:"description"`
		GeometryType   string        `json:"geometryType"`
		ObjectIDField  string        `json:"objectIdField"`
		MaxRecordCount int           `json:"maxRecordCount"`
		Fields         []struct {
			Name  string `json:"name"`
			Type  string `json:"type"`
			Alias string `json:"alias"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse layer metadata: %w", err)
	}
	if raw.Error != nil {
		return nil, fmt.Errorf("feature service error %d: %s", raw.Error.Code, raw.Error.Message)
	}

	info := &LayerInfo{
		Name:           raw.Name,
		Description:    raw.Description,
		GeometryType:   raw.GeometryType,
		ObjectIDField:  raw.ObjectIDField,
		MaxRecordCount: raw.MaxRecordCount,
	}
	if info.ObjectIDField == "" {
		info.ObjectIDField = "OBJECTID"
	}
	if info.MaxRecordCount == 0 {
		info.MaxRecordCount = 1000
	}
	for _, f := range raw.Fields {
		alias := f.Alias
		if alias == "" {
			alias = f.Name
		}
		info.Fields = append(info.Fields, Field{Name: f.Name, Type: f.Type, Alias: alias})
	}
	return info, nil
}

// Query runs an attribute-filtered query against the layer and returns one
// flat attribute map per feature. where defaults to "1=1" and outFields to
// "*" when empty; limit caps the number of returned records.
func (c *Client) Query(ctx context.Context, layerURL, where, outFields string, limit int) ([]map[string]any, error) {
	if where == "" {
		where = "1=1"
	}
	if outFields == "" {
		outFields = "*"
	}

	params := url.Values{}
	params.Set("where", where)
	params.Set("outFields", outFields)
	params.Set("returnGeometry", "false")
	if limit > 0 {
		params.Set("resultRecordCount", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, layerURL+"/query", params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Error    *serviceError `json:"error"`
		Features []struct {
			Attributes map[string]any `json:"attributes"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse query result: %w", err)
	}
	if raw.Error != nil {
		return nil, fmt.Errorf("feature service error %d: %s", raw.Error.Code, raw.Error.Message)
	}

	records := make([]map[string]any, 0, len(raw.Features))
	for _, f := range raw.Features {
		records = append(records, f.Attributes)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	params.Set("f", "json")
	if c.apiKey != "" {
		params.Set("token", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feature service request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature service returned status %d", resp.StatusCode)
	}
	return body, nil
}
