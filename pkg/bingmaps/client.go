// Package bingmaps queries the Bing Maps Routes API for driving distances.
package bingmaps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/road-distance-cli/internal/model"
	"github.com/sells-group/road-distance-cli/internal/resilience"
)

// DefaultBaseURL is the Routes API driving endpoint.
const DefaultBaseURL = "http://dev.virtualearth.net/REST/V1/Routes/Driving"

const redactedKey = "REDACTED"

// Client returns the road distance between two coordinates.
type Client interface {
	// RoadDistance returns the driving distance from origin to destination in
	// the service's unit. A response without a travel distance yields the
	// missing-distance sentinel and a nil error.
	RoadDistance(ctx context.Context, origin, destination model.Coordinate) (float64, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bingmaps: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Routes endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "?")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout on the default http.Client.
// A zero timeout means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http = &http.Client{Timeout: d}
	}
}

// WithDistanceUnit requests distances in "km" or "mi". Empty leaves the
// service default (kilometers).
func WithDistanceUnit(unit string) Option {
	return func(c *httpClient) {
		c.unit = unit
	}
}

// WithLogger scopes request logging to log.
func WithLogger(log *zap.Logger) Option {
	return func(c *httpClient) {
		c.log = log
	}
}

type httpClient struct {
	key     string
	baseURL string
	unit    string
	http    *http.Client
	log     *zap.Logger
}

// NewClient creates a Routes client authenticated with key.
func NewClient(key string, opts ...Option) Client {
	c := &httpClient{
		key:     key,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zap.L(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) RoadDistance(ctx context.Context, origin, destination model.Coordinate) (float64, error) {
	reqURL := c.routeURL(origin, destination, url.QueryEscape(c.key))
	logURL := c.routeURL(origin, destination, redactedKey)

	c.log.Info("requesting route", zap.String("url", logURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, eris.Wrap(scrubURL(err, logURL), "bingmaps: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(scrubURL(err, logURL), "bingmaps: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, eris.Wrap(err, "bingmaps: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return 0, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return 0, statusErr
	}

	c.log.Info("decoding route response")

	distance, err := TravelDistance(body)
	switch {
	case errors.Is(err, ErrFieldAbsent):
		distance = model.MissingDistance()
	case err != nil:
		return 0, err
	}

	c.log.Info("road distance", zap.Float64("distance", distance))
	return distance, nil
}

// routeURL fills the wp.0/wp.1/key query template. The key is passed
// pre-escaped so the same template serves both the request and the log line.
func (c *httpClient) routeURL(origin, destination model.Coordinate, key string) string {
	u := fmt.Sprintf("%s?wp.0=%s&wp.1=%s&key=%s", c.baseURL, origin, destination, key)
	if c.unit != "" {
		u += "&distanceUnit=" + url.QueryEscape(c.unit)
	}
	return u
}

// scrubURL replaces the URL recorded in a *url.Error so the key does not
// leak into error messages.
func scrubURL(err error, safe string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = safe
	}
	return err
}
