package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/domain"
)

// CRMSource pulls real activity numbers from the external CRM REST API.
// Requests carry the configured bearer token via an oauth2 transport.
type CRMSource struct {
	domain  domain.Domain
	baseURL string
	client  *http.Client
}

// NewCRMSource creates a CRM source for one domain.
func NewCRMSource(d domain.Domain, cfg config.CRMConfig) *CRMSource {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	client := oauth2.NewClient(context.Background(), ts)
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.Timeout = timeout

	return &CRMSource{
		domain:  d,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// Name returns the source name.
func (c *CRMSource) Name() string { return "crm" }

// Survey fetches the light pulse endpoint.
func (c *CRMSource) Survey(ctx context.Context) (domain.Sample, error) {
	return c.fetch(ctx, "pulse")
}

// Task fetches the full activity endpoint.
func (c *CRMSource) Task(ctx context.Context) (domain.Sample, error) {
	return c.fetch(ctx, "activity")
}

type crmActivityResponse struct {
	Fields map[string]float64 `json:"fields"`
}

func (c *CRMSource) fetch(ctx context.Context, kind string) (domain.Sample, error) {
	url := fmt.Sprintf("%s/v1/domains/%s/%s", c.baseURL, c.domain, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: "crm", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{Source: "crm", Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var result crmActivityResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	sample := make(domain.Sample, len(result.Fields))
	for name, value := range result.Fields {
		sample[domain.Field(name)] = value
	}
	return sample, nil
}
