// Package classifier talks to the external food image classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// FormField is the multipart field the classifier reads the image from.
	FormField      = "file"
	DefaultTimeout = 30 * time.Second
	userAgent      = "foodfinder-classifier/1.0"

	// maxErrorBody caps how much of a failed response is echoed into errors.
	maxErrorBody = 512
)

var ErrEmptyLabel = errors.New("classifier returned no detected_food label")

var (
	classifyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodfinder_classifier_requests_total",
			Help: "Total number of classifier calls by outcome",
		},
		[]string{"outcome"},
	)

	classifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foodfinder_classifier_request_duration_seconds",
			Help:    "Classifier call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Client posts images to the classifier endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its Timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a client for url. Every call is bounded by timeout; zero or
// less uses DefaultTimeout.
func New(url string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	DetectedFood string `json:"detected_food"`
}

// Classify uploads the image read from r and returns the detected food label.
func (c *Client) Classify(ctx context.Context, filename string, r io.Reader) (label string, err error) {
	start := time.Now()
	defer func() {
		classifyDuration.Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		classifyRequests.WithLabelValues(outcome).Inc()
	}()

	body, contentType, err := encodeImage(filename, r)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", fmt.Errorf("creating classifier request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("classifier returned status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding classifier response: %w", err)
	}

	label = strings.TrimSpace(out.DetectedFood)
	if label == "" {
		return "", ErrEmptyLabel
	}
	return label, nil
}

func encodeImage(filename string, r io.Reader) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	part, err := mw.CreateFormFile(FormField, filepath.Base(filename))
	if err != nil {
		return nil, "", fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("copying image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf, mw.FormDataContentType(), nil
}
