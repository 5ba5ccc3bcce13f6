package npm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

const defaultBaseURL = "https://api.npmjs.org"

// Client reads download counts from the npm registry API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the Client
type Option func(*Client)

// WithBaseURL replaces the npm API endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ interfaces.DownloadCounter = (*Client)(nil)

type pointResponse struct {
	Downloads int64  `json:"downloads"`
	Package   string `json:"package"`
}

// MonthlyDownloads returns the downloads of pkg in the last month. An unknown package
// has zero downloads.
func (c *Client) MonthlyDownloads(ctx context.Context, pkg string) (int64, error) {
	// scoped names keep their slash: @scope/name
	endpoint := c.baseURL + "/downloads/point/last-month/" + strings.ReplaceAll(url.PathEscape(pkg), "%2F", "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to build npm request", goerr.V("package", pkg))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to call npm API", goerr.V("package", pkg))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, goerr.New("unexpected npm API status",
			goerr.V("package", pkg),
			goerr.V("status", resp.StatusCode),
		)
	}

	var body pointResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, goerr.Wrap(err, "failed to decode npm API response", goerr.V("package", pkg))
	}

	return body.Downloads, nil
}
