// Package source retrieves iati-activity elements, either by paging a
// d-portal query or from a local IATI XML file.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/dshills/iati3w/internal/metrics"
	"github.com/dshills/iati3w/internal/xmlnode"
)

// DefaultEndpoint is the d-portal query API.
const DefaultEndpoint = "http://www.d-portal.org/q"

// ActivityElement is the element name yielded by the source.
const ActivityElement = "iati-activity"

// maxPageBytes bounds one response body.
const maxPageBytes = 64 * 1024 * 1024

// ErrUnexpectedStatus is returned when d-portal answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

var defaultClient = &http.Client{Timeout: 2 * time.Minute}

// Options configures an Iterator. Zero fields take defaults.
type Options struct {
	Endpoint string
	Client   Doer
	Logger   *slog.Logger
	Metrics  *metrics.Fetch
}

type state int

const (
	needsFetch state = iota
	hasBuffered
	exhausted
)

// Iterator pages through a d-portal query and yields its activities one at
// a time. It is forward-only: once a page comes back empty, or a fetch
// fails, every later call returns the same end or error without touching
// the network. An Iterator is not safe for concurrent use.
type Iterator struct {
	query    Query
	endpoint string
	client   Doer
	logger   *slog.Logger
	metrics  *metrics.Fetch

	state  state
	queue  []*xmlnode.Element
	offset int
	pages  int
	err    error
}

// NewIterator returns an Iterator for q. No request is made until Next.
func NewIterator(q Query, opts Options) (*Iterator, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	it := &Iterator{
		query:    q,
		endpoint: opts.Endpoint,
		client:   opts.Client,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if it.endpoint == "" {
		it.endpoint = DefaultEndpoint
	}
	if it.client == nil {
		it.client = defaultClient
	}
	if it.logger == nil {
		it.logger = slog.New(slog.DiscardHandler)
	}
	return it, nil
}

// Next returns the next activity element. It returns io.EOF after the last
// one.
func (it *Iterator) Next(ctx context.Context) (*xmlnode.Element, error) {
	for {
		switch it.state {
		case exhausted:
			if it.err != nil {
				return nil, it.err
			}
			return nil, io.EOF

		case hasBuffered:
			el := it.queue[0]
			it.queue[0] = nil
			it.queue = it.queue[1:]
			if len(it.queue) == 0 {
				it.queue = nil
				it.state = needsFetch
			}
			return el, nil

		case needsFetch:
			page, err := it.fetch(ctx)
			if err != nil {
				it.err = err
				it.state = exhausted
				return nil, err
			}
			if len(page) == 0 {
				it.state = exhausted
				it.logger.Info("end of activities", "pages", it.pages, "offset", it.offset)
				continue
			}
			it.queue = page
			it.state = hasBuffered
		}
	}
}

// All returns a single-use sequence over the remaining activities. It
// stops after the first error, which is yielded with a nil element.
func (it *Iterator) All(ctx context.Context) iter.Seq2[*xmlnode.Element, error] {
	return func(yield func(*xmlnode.Element, error) bool) {
		for {
			el, err := it.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(el, err) || err != nil {
				return
			}
		}
	}
}

// Pages returns the number of pages fetched so far.
func (it *Iterator) Pages() int { return it.pages }

// Endpoint returns the query endpoint.
func (it *Iterator) Endpoint() string { return it.endpoint }

func (it *Iterator) fetch(ctx context.Context) ([]*xmlnode.Element, error) {
	start := time.Now()
	offset := it.offset
	u := it.endpoint + "?" + it.query.Values(offset).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := it.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetching offset %d: %w: HTTP %d: %s", offset, ErrUnexpectedStatus, resp.StatusCode, truncate(string(body), 200))
	}

	page, err := xmlnode.ReadElements(io.LimitReader(resp.Body, maxPageBytes), ActivityElement)
	if err != nil {
		return nil, fmt.Errorf("page at offset %d: %w", offset, err)
	}

	it.pages++
	it.offset += it.query.PageSize
	cached := resp.Header.Get(CacheHeader) != ""
	it.metrics.ObservePage(time.Since(start), len(page), cached)
	it.logger.Debug("fetched page", "offset", offset, "activities", len(page), "cached", cached)
	return page, nil
}

// truncate limits a string to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
