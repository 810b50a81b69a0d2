// Package strava talks to the Strava token and activities endpoints.
package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/observability"
)

// maxErrorBody caps how much of a failed response is kept on a FetchError.
const maxErrorBody = 64 << 10

// Client pages through the athlete activities endpoint.
type Client struct {
	activitiesURL string
	opts          options
	limiter       *rate.Limiter
}

// NewClient constructs a Client for the given activities endpoint.
func NewClient(activitiesURL string, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{activitiesURL: activitiesURL, opts: o, limiter: o.limiter()}
}

// ExportAll requests pages 1, 2, 3, ... until one comes back empty and returns every activity
// in request order. Any failed page aborts the export and discards what was already fetched.
func (c *Client) ExportAll(ctx context.Context, accessToken string) ([]domain.Activity, error) {
	ctx, span := observability.Tracer("strava").Start(ctx, "strava.export_all")
	defer span.End()

	var all []domain.Activity
	for page := 1; ; page++ {
		batch, err := c.FetchPage(ctx, accessToken, page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "export failed")
			return nil, err
		}
		if len(batch) == 0 {
			span.SetAttributes(attribute.Int("strava.pages", page), attribute.Int("strava.activities", len(all)))
			c.opts.logger.Info("fetched activities", zap.Int("count", len(all)), zap.Int("requests", page))
			return all, nil
		}
		all = append(all, batch...)
	}
}

// FetchPage requests a single page of activities.
func (c *Client) FetchPage(ctx context.Context, accessToken string, page int) ([]domain.Activity, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Page: page, Err: err}
		}
	}

	ctx, span := observability.Tracer("strava").Start(ctx, "strava.fetch_page")
	defer span.End()
	span.SetAttributes(attribute.Int("strava.page", page))

	endpoint, err := url.Parse(c.activitiesURL)
	if err != nil {
		return nil, &FetchError{Page: page, Err: fmt.Errorf("parse activities url: %w", err)}
	}
	q := endpoint.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.opts.pageSize))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	c.opts.logger.Info("requesting activities page", zap.Int("page", page), zap.Int("per_page", c.opts.pageSize))
	start := time.Now()
	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Page: page, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		span.SetStatus(codes.Error, resp.Status)
		c.opts.logger.Error("activities request failed",
			zap.Int("page", page),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, &FetchError{Page: page, StatusCode: resp.StatusCode, Body: string(body)}
	}

	batch, err := decodePage(body)
	if err != nil {
		return nil, &FetchError{Page: page, StatusCode: resp.StatusCode, Err: err}
	}
	observability.RecordPageFetched()
	c.opts.logger.Debug("activities page received",
		zap.Int("page", page),
		zap.Int("count", len(batch)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return batch, nil
}

var errNotArray = errors.New("activities response is not a JSON array")

// decodePage turns a JSON array of activity objects into activities, keeping each object's
// keys in the order the endpoint sent them.
func decodePage(body []byte) ([]domain.Activity, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("activities response is not valid JSON")
	}
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, errNotArray
	}

	items := result.Array()
	out := make([]domain.Activity, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("activity %d is not a JSON object", i)
		}
		var fields []domain.Field
		item.ForEach(func(key, value gjson.Result) bool {
			fields = append(fields, domain.Field{Name: key.String(), Value: cellText(value)})
			return true
		})
		out = append(out, domain.Activity{Fields: fields})
	}
	return out, nil
}

// cellText renders a JSON value as CSV cell text. Numbers keep their literal form so large
// identifiers survive unchanged; nested values stay JSON.
func cellText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.Str
	case gjson.True:
		return "True"
	case gjson.False:
		return "False"
	default:
		return v.Raw
	}
}
