package hubspot

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sjsage522/dealbridge/logger"
	"sjsage522/dealbridge/pkg/errors"
)

// DealProperties are the CRM properties the bridge forwards
var DealProperties = []string{
	"dealname",
	"amount",
	"closedate",
	"dealstage",
	"hubspot_owner_id",
	"company",
}

// Deal is a CRM deal object as returned by the v3 objects API
type Deal struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
}

// DealProperty exposes the deal as a host source; key "id" is the object id
func (d *Deal) DealProperty(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	if key == "id" {
		return d.ID, d.ID != ""
	}
	v, ok := d.Properties[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// maxAttempts bounds GetDeal requests when the API fails transiently
const maxAttempts = 2

// Client reads deals from the HubSpot CRM API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryDelay time.Duration
	log        *logger.Logger
}

// NewClient creates a client authenticating with a private app token
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryDelay: 500 * time.Millisecond,
		log:        logger.ForHubSpot(),
	}
}

// GetDeal fetches one deal with the forwarded properties.
// Network failures and unexpected statuses are retried once.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*Deal, error) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var d *Deal
		if d, err = c.fetchDeal(ctx, dealID); err == nil {
			return d, nil
		}

		var be *errors.BridgeError
		if !stderrors.As(err, &be) || !be.IsRetryable() || attempt == maxAttempts {
			break
		}
		c.log.Debug().Err(err).Str("deal_id", dealID).Int("attempt", attempt).Msg("Retrying deal lookup")

		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return nil, errors.NewNetwork("hubspot", "lookup cancelled", ctx.Err())
		}
	}
	return nil, err
}

func (c *Client) fetchDeal(ctx context.Context, dealID string) (*Deal, error) {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/deals/%s?%s",
		c.baseURL,
		url.PathEscape(dealID),
		url.Values{"properties": {strings.Join(DealProperties, ",")}}.Encode(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewNetwork("hubspot", "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetwork("hubspot", "request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errors.NewConfiguration("HubSpot rejected the API key", fmt.Errorf("status %d", resp.StatusCode))
	case http.StatusNotFound:
		return nil, errors.NewValidation("hubspot", "deal "+dealID+" not found")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.NewNetwork("hubspot", fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, body), nil)
	}

	var d Deal
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, errors.NewParsing("hubspot", "invalid deal response", err)
	}

	c.log.Debug().Str("deal_id", d.ID).Int("properties", len(d.Properties)).Msg("Fetched deal")
	return &d, nil
}
