// Package places queries a nearby places search API and turns
// its reply into placeable points.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/woozymasta/nearmap/internal/geo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nearmap_places_fetch_total",
	Help: "Nearby places requests by outcome.",
}, []string{"outcome"})

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	Endpoint  string
	APIKey    string
	Radius    int     // meters
	RateLimit float64 // requests per second, 0 is unlimited
}

// Client fetches nearby places.
type Client struct {
	client  Doer
	limiter *rate.Limiter
	opts    Options
}

// NewClient creates a Client. A nil doer gets an *http.Client with timeout.
func NewClient(opts Options, doer Doer, timeout time.Duration) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("empty endpoint")
	}
	if opts.Radius <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %d", opts.Radius)
	}
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}

	c := &Client{client: doer, opts: opts}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return c, nil
}

// BuildURL constructs the search URL for a coordinate.
func (c *Client) BuildURL(coord geo.Coordinate) (*url.URL, error) {
	if !coord.Valid() {
		return nil, fmt.Errorf("invalid coordinate %s", coord)
	}

	u, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q is not absolute", c.opts.Endpoint)
	}

	query := u.Query()
	query.Set("location", coord.String())
	query.Set("radius", strconv.Itoa(c.opts.Radius))
	query.Set("key", c.opts.APIKey)
	u.RawQuery = query.Encode()

	return u, nil
}

// Fetch performs a single search around coord. Any failure collapses
// into (nil, false); nothing is retried.
func (c *Client) Fetch(ctx context.Context, coord geo.Coordinate) (*Response, bool) {
	u, err := c.BuildURL(coord)
	if err != nil {
		log.Debug().Err(err).Msg("Unable to build nearby places URL")
		fetchTotal.WithLabelValues("bad_request").Inc()
		return nil, false
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			log.Debug().Err(err).Msg("Nearby places request not admitted by limiter")
			fetchTotal.WithLabelValues("throttled").Inc()
			return nil, false
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		log.Debug().Err(err).Msg("Unable to create nearby places request")
		fetchTotal.WithLabelValues("bad_request").Inc()
		return nil, false
	}

	t := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		fetchTotal.WithLabelValues("transport_error").Inc()
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fetchTotal.WithLabelValues("bad_status").Inc()
		return nil, false
	}

	var res *Response
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil || res == nil {
		log.Debug().Err(err).Msg("Unable to decode nearby places response")
		fetchTotal.WithLabelValues("decode_error").Inc()
		return nil, false
	}

	log.Debug().
		Str("location", coord.String()).
		Str("status", res.Status).
		Int("results", len(res.Results)).
		Dur("duration", time.Since(t)).
		Msg("Nearby places fetched")

	fetchTotal.WithLabelValues("ok").Inc()
	return res, true
}

// Nearby runs Fetch on its own goroutine and calls done with the
// response, or nil on failure. done is called exactly once and never
// on the caller's goroutine.
func (c *Client) Nearby(ctx context.Context, coord geo.Coordinate, done func(*Response)) {
	go func() {
		res, _ := c.Fetch(ctx, coord)
		done(res)
	}()
}
