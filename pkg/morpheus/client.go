package morpheus

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/openmorph/morphctl/pkg/directive"
	"github.com/openmorph/morphctl/pkg/telemetry"
)

// Client talks to the remote entity service over HTTPS with bearer token
// authentication.
type Client struct {
	base    string
	token   string
	http    *http.Client
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// ConfigFromEnv builds a Config from the MORPHEUS_HOST, MORPHEUS_TOKEN
// and MORPHEUS_SSL_VERIFY environment variables.
func ConfigFromEnv() Config {
	return Config{
		Host:               os.Getenv("MORPHEUS_HOST"),
		Token:              os.Getenv("MORPHEUS_TOKEN"),
		InsecureSkipVerify: os.Getenv("MORPHEUS_SSL_VERIFY") == "FALSE",
	}
}

// NewClient validates cfg and returns a ready client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	base := cfg.Host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	base = strings.TrimSuffix(base, "/")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- operator opt-in
		}
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}

	return &Client{
		base:  base,
		token: cfg.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:  logger.With().Str("component", "morpheus-client").Logger(),
		metrics: metrics,
	}, nil
}

// Call performs one API request. path accepts collection aliases
// ("optionTypes"), relative paths ("library/option-types/5?force=true")
// or absolute paths, with query parameters carried through. The decoded
// JSON payload is returned; numbers decode as json.Number so identifier
// types survive round trips.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}) (interface{}, error) {
	rel, params, err := splitPathParams(path)
	if err != nil {
		return nil, err
	}
	apiPath := directive.APIPath(rel)

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.base + apiPath
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordServiceError(method)
		return nil, fmt.Errorf("%s %s: %w", method, apiPath, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	c.metrics.RecordServiceCall(method, time.Since(started))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w", method, apiPath, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", apiPath).
		Int("status", resp.StatusCode).
		Msg("API call")

	var content interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&content); err != nil {
		content = string(raw)
	}

	success := true
	if m, ok := content.(map[string]interface{}); ok {
		if s, ok := m["success"].(bool); ok {
			success = s
		}
	}
	if (resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated) || !success {
		c.metrics.RecordServiceError(method)
		return nil, &APIError{Code: resp.StatusCode, Message: errorMessage(content)}
	}
	return content, nil
}

// errorMessage extracts the service's msg/errors fields from an error
// payload, falling back to the whole payload.
func errorMessage(content interface{}) string {
	if m, ok := content.(map[string]interface{}); ok {
		if msg, ok := m["msg"].(string); ok {
			return msg
		}
		if errs, ok := m["errors"]; ok {
			return fmt.Sprintf("%v", errs)
		}
	}
	return fmt.Sprintf("%v", content)
}

// unwrapEntity extracts the entity payload from a response envelope: the
// value of the first key that is not response metadata.
func unwrapEntity(content interface{}) (interface{}, bool) {
	m, ok := content.(map[string]interface{})
	if !ok {
		return nil, false
	}
	for k, v := range m {
		if k != "meta" && k != "success" {
			return v, true
		}
	}
	return nil, false
}

// LookupByName fetches the entity named name in the collection at path.
// Returns ErrNotFound when the collection has no such entity.
func (c *Client) LookupByName(ctx context.Context, path, name string) (map[string]interface{}, error) {
	content, err := c.Call(ctx, http.MethodGet, path+"?name="+url.QueryEscape(name), nil)
	if err != nil {
		return nil, err
	}
	list, ok := unwrapEntity(content)
	if !ok {
		return nil, ErrNotFound
	}
	items, ok := list.([]interface{})
	if !ok || len(items) == 0 {
		return nil, ErrNotFound
	}
	entity, ok := items[0].(map[string]interface{})
	if !ok {
		return nil, ErrNotFound
	}
	return entity, nil
}

// LookupID resolves the identifier of the entity named name, or
// ErrNotFound.
func (c *Client) LookupID(ctx context.Context, path, name string) (interface{}, error) {
	entity, err := c.LookupByName(ctx, path, name)
	if err != nil {
		return nil, err
	}
	id, ok := entity["id"]
	if !ok {
		return nil, ErrNotFound
	}
	return id, nil
}

// List returns the name/identifier pairs of the collection at path,
// optionally narrowed to names starting with prefix. Listing order
// follows the service.
func (c *Client) List(ctx context.Context, path, prefix string) ([]Entity, error) {
	query := path
	if prefix != "" {
		query += "?phrase=" + url.QueryEscape(prefix)
	}
	content, err := c.Call(ctx, http.MethodGet, query, nil)
	if err != nil {
		return nil, err
	}
	list, ok := unwrapEntity(content)
	if !ok {
		return nil, nil
	}
	items, _ := list.([]interface{})
	entities := make([]Entity, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		entities = append(entities, Entity{ID: m["id"], Name: name})
	}
	return entities, nil
}

// Create posts body to path (or an override create path) and returns the
// new entity's identifier. Responses are not consistent across the API:
// the id may be top-level or nested one object deep.
func (c *Client) Create(ctx context.Context, path string, body interface{}) (interface{}, error) {
	content, err := c.Call(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	m, ok := content.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("entity id not found in POST response for %s", directive.APIPath(path))
	}
	if id, ok := m["id"]; ok {
		return id, nil
	}
	for _, v := range m {
		nested, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := nested["id"]; ok {
			return id, nil
		}
	}
	return nil, fmt.Errorf("entity id not found in POST response for %s", directive.APIPath(path))
}

// Update replaces the entity identified by id at path with body.
func (c *Client) Update(ctx context.Context, path string, id interface{}, body interface{}) error {
	_, err := c.Call(ctx, http.MethodPut, fmt.Sprintf("%s/%v", path, id), body)
	return err
}

// Delete removes the entity identified by id at path. force asks the
// service to delete even when the entity is referenced elsewhere.
func (c *Client) Delete(ctx context.Context, path string, id interface{}, force bool) error {
	target := fmt.Sprintf("%s/%v", path, id)
	if force {
		target += "?force=true"
	}
	_, err := c.Call(ctx, http.MethodDelete, target, nil)
	return err
}

// splitPathParams separates embedded query parameters from a path.
func splitPathParams(path string) (string, url.Values, error) {
	i := strings.IndexByte(path, '?')
	if i < 0 {
		return path, url.Values{}, nil
	}
	params, err := url.ParseQuery(path[i+1:])
	if err != nil {
		return "", nil, fmt.Errorf("invalid query in path %q: %w", path, err)
	}
	return path[:i], params, nil
}
