package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// CacheHeader is set on responses served from the on-disk cache.
const CacheHeader = "X-Iati3w-Cache"

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CachingClient stores successful response bodies on disk, keyed by the
// SHA-256 of the request URL, and replays them for repeated requests.
type CachingClient struct {
	CacheDir string
	Client   Doer
	Logger   *slog.Logger
}

// NewCachingClient returns a CachingClient writing under cacheDir.
func NewCachingClient(cacheDir string, client Doer, logger *slog.Logger) (*CachingClient, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachingClient{CacheDir: cacheDir, Client: client, Logger: logger}, nil
}

func (c *CachingClient) Do(req *http.Request) (*http.Response, error) {
	cachePath := filepath.Join(c.CacheDir, cacheKey(req.URL.String()))

	if cached, err := os.Open(cachePath); err == nil {
		h := make(http.Header)
		h.Set(CacheHeader, "hit")
		return cachedResponse(req, h, cached), nil
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	// A cache entry only ever holds a complete body.
	tmp, err := os.CreateTemp(c.CacheDir, "page-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("caching response: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("caching response: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("caching response: %w", err)
	}
	c.Logger.Debug("cached response", "url", req.URL.String(), "path", cachePath)

	cached, err := os.Open(cachePath)
	if err != nil {
		return nil, err
	}
	return cachedResponse(req, resp.Header.Clone(), cached), nil
}

func cachedResponse(req *http.Request, h http.Header, body io.ReadCloser) *http.Response {
	return &http.Response{
		Request:       req,
		Header:        h,
		Body:          body,
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		ContentLength: -1,
	}
}

func cacheKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])
}
