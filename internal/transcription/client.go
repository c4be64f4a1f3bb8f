package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"plate-order-backend/config"
	"plate-order-backend/internal/audio"
)

// Client posts recordings to a speech-to-text service as multipart form data.
type Client struct {
	endpoint   string
	apiKey     string
	format     string
	language   string
	maxRetries int
	httpClient *http.Client
	semaphore  chan struct{}

	mu              sync.RWMutex
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration
}

// Stats are the client's request counters.
type Stats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.code, e.body)
}

// NewClient creates a client for cfg.Endpoint.
func NewClient(cfg config.TranscriptionConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("transcription endpoint cannot be empty")
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	format := cfg.Format
	if format == "" {
		format = "webm"
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		format:     format,
		language:   cfg.Language,
		maxRetries: retries,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		semaphore: make(chan struct{}, maxConcurrent),
	}, nil
}

// Transcribe sends the recording and returns the recognized text. Every
// failure is returned as *Error.
func (c *Client) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, wrap(ctx.Err())
	}

	start := time.Now()
	c.count(&c.totalRequests)

	body, contentType, err := c.buildForm(a)
	if err != nil {
		c.count(&c.failedRequests)
		return nil, wrap(err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.count(&c.totalRetries)
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.count(&c.failedRequests)
				return nil, wrap(ctx.Err())
			}
		}

		res, err := c.doRequest(ctx, body, contentType)
		if err == nil {
			c.count(&c.successRequests)
			c.observe(time.Since(start))
			return res, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	c.count(&c.failedRequests)
	return nil, wrap(lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte, contentType string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	var res Result
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return nil, ErrUnintelligible
	}
	return &res, nil
}

// buildForm encodes the recording as the "audio" form field. With format wav,
// raw PCM is wrapped in a WAV container first.
func (c *Client) buildForm(a Audio) ([]byte, string, error) {
	data, filename, mimeType := a.Data, "recording.webm", a.MimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	if c.format == "wav" {
		filename, mimeType = "recording.wav", "audio/wav"
		if audio.ValidateWAV(data) != nil {
			channels := a.Channels
			if channels == 0 {
				channels = 1
			}
			wav, err := audio.EncodeWAV(audio.PCM16FromBytes(data), a.SampleRate, channels)
			if err != nil {
				return nil, "", fmt.Errorf("encode wav: %w", err)
			}
			data = wav
		}
	}
	if a.Filename != "" {
		filename = a.Filename
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write audio: %w", err)
	}
	if c.language != "" {
		if err := w.WriteField("language", c.language); err != nil {
			return nil, "", fmt.Errorf("write language: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func (c *Client) count(n *uint64) {
	c.mu.Lock()
	*n++
	c.mu.Unlock()
}

func (c *Client) observe(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.avgResponseTime == 0 {
		c.avgResponseTime = d
	} else {
		c.avgResponseTime = (c.avgResponseTime + d) / 2
	}
}

// Stats returns the current counters.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}
