package lightspeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// timeStampFilterLayout is the timestamp format accepted by API filters.
const timeStampFilterLayout = time.RFC3339

// APIError represents a non-2xx response from the Lightspeed API.
type APIError struct {
	// Body is the response body, truncated for logging.
	Body string

	// StatusCode is the HTTP status code of the response.
	StatusCode int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("lightspeed API returned status %d: %s", e.StatusCode, e.Body)
}

// Unauthorized reports whether the error is a rejected access token.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// SalesQuery describes a filtered, sorted sales listing request.
type SalesQuery struct {
	// AccountID is the Lightspeed account to query.
	AccountID string

	// Limit is the page size. Zero uses the default of 100.
	Limit int

	// UpdatedAfter restricts results to sales updated strictly after the
	// given time. Zero means no lower bound.
	UpdatedAfter time.Time

	// UpdatedBefore restricts results to sales updated strictly before
	// the given time. Zero means no upper bound.
	UpdatedBefore time.Time
}

// Client is a Lightspeed Retail API client.
type Client struct {
	// baseURL is the base URL for API requests.
	baseURL string

	// config holds the client configuration.
	config Config

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// tokenURL is the OAuth token endpoint.
	tokenURL string
}

// SalesURL builds the URL of the first page for the given query. Results
// are sorted newest to oldest by update time, with sale lines, payments
// and customer relations expanded inline.
func (c *Client) SalesURL(q SalesQuery) string {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	params := url.Values{}
	params.Set("sort", "-timeStamp")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("load_relations", `["SaleLines","SaleLines.Item","SalePayments","SalePayments.PaymentType","Customer"]`)

	switch {
	case !q.UpdatedAfter.IsZero():
		params.Set("timeStamp", ">,"+q.UpdatedAfter.UTC().Format(timeStampFilterLayout))
	case !q.UpdatedBefore.IsZero():
		params.Set("timeStamp", "<,"+q.UpdatedBefore.UTC().Format(timeStampFilterLayout))
	}

	return fmt.Sprintf("%s/API/V3/Account/%s/Sale.json?%s", c.baseURL, q.AccountID, params.Encode())
}

// FetchSales fetches one page of sales from the given page URL. The page
// URL is either built by SalesURL or taken from a previous page's Next
// link. An empty Sales slice indicates the end of the stream.
func (c *Client) FetchSales(ctx context.Context, accessToken string, pageURL string) (*SalesPage, error) {
	var result salesResponse
	if err := c.doRequest(ctx, accessToken, pageURL, &result); err != nil {
		return nil, fmt.Errorf("fetching sales page: %w", err)
	}

	sales, err := oneOrMany[Sale](result.Sale)
	if err != nil {
		return nil, fmt.Errorf("decoding sales: %w", err)
	}

	return &SalesPage{
		Next:  result.Attributes.Next,
		Sales: sales,
	}, nil
}

// Account returns the account owning the given access token.
func (c *Client) Account(ctx context.Context, accessToken string) (*Account, error) {
	reqURL := fmt.Sprintf("%s/API/V3/Account.json", c.baseURL)

	var result accountResponse
	if err := c.doRequest(ctx, accessToken, reqURL, &result); err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	return &result.Account, nil
}

// doRequest executes an authenticated GET request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, accessToken string, reqURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{
			Body:       string(body),
			StatusCode: resp.StatusCode,
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// Config holds the required configuration for creating a Client.
type Config struct {
	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.ClientID == "" {
		errs = append(errs, errors.New("client ID is required"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("client secret is required"))
	}
	return errors.Join(errs...)
}

// NewClient creates a new Lightspeed Retail API client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	return &Client{
		baseURL:    o.baseURL,
		config:     cfg,
		httpClient: httpClient,
		tokenURL:   o.tokenURL,
	}, nil
}
