package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Ping probes the backend with a single uncached HEAD request. It does not
// retry: the caller treats any error as "offline".
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))

	_, err := c.doRequest(ctx, request{
		method: http.MethodHead,
		path:   c.pingPath,
		query:  query,
		header: http.Header{"Cache-Control": []string{"no-store"}},
	})
	return err
}
