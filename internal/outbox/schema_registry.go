package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

var errSubjectNotFound = errors.New("schema subject not found")

// SchemaRegistryClient registers JSON schemas with a Confluent compatible registry.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSchemaRegistryClient constructs a client. A nil httpClient gets a 10s timeout.
func NewSchemaRegistryClient(baseURL string, httpClient *http.Client) *SchemaRegistryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// EnsureSchema returns the ID of schema under subject, registering it when the
// registry does not know it yet.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	id, err := c.call(ctx, "/subjects/"+url.PathEscape(subject), schema)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, errSubjectNotFound) {
		return 0, err
	}
	return c.call(ctx, "/subjects/"+url.PathEscape(subject)+"/versions", schema)
}

func (c *SchemaRegistryClient) call(ctx context.Context, path, schema string) (int, error) {
	body, err := json.Marshal(map[string]any{
		"schemaType": "JSON",
		"schema":     schema,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", registryContentType)
	req.Header.Set("Accept", registryContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, errSubjectNotFound
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("schema registry %s: %d %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}
