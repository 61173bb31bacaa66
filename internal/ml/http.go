package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"time"
)

const maxResponseBytes = 1 << 20

// HTTPConfig holds configuration for a prediction service reached over HTTP
type HTTPConfig struct {
	BaseConfig
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Load loads the HTTP model configuration
func (c *HTTPConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "http", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("MODEL_API_URL")
	}
	if c.TimeoutSeconds == 0 {
		if v, err := strconv.Atoi(os.Getenv("MODEL_API_TIMEOUT")); err == nil {
			c.TimeoutSeconds = v
		}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// HTTPModel posts product photos to an external prediction endpoint
type HTTPModel struct {
	config HTTPConfig
	client *http.Client
}

// HTTPModelFactory implements ModelFactory for HTTP models
type HTTPModelFactory struct {
	config HTTPConfig
}

// NewHTTPModelFactory creates a new HTTP model factory
func NewHTTPModelFactory(config HTTPConfig) *HTTPModelFactory {
	return &HTTPModelFactory{config: config}
}

// CreateModel creates a new HTTP model instance
func (f *HTTPModelFactory) CreateModel() (Model, error) {
	return &HTTPModel{config: f.config}, nil
}

// Load validates the endpoint and prepares the HTTP client
func (m *HTTPModel) Load(ctx context.Context) error {
	if m.config.Endpoint == "" {
		return fmt.Errorf("prediction endpoint is not set")
	}
	u, err := url.Parse(m.config.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid prediction endpoint %q", m.config.Endpoint)
	}

	m.client = &http.Client{Timeout: time.Duration(m.config.TimeoutSeconds) * time.Second}
	return nil
}

// ProcessImage uploads the image as multipart field "image" and returns the
// decoded JSON response
func (m *HTTPModel) ProcessImage(ctx context.Context, imageData []byte) (map[string]any, error) {
	if m.client == nil {
		return nil, fmt.Errorf("model not loaded")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="product.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("prediction request failed: %s", resp.Status)
	}
	return decodeObject(data)
}

// decodeObject parses data as a JSON object
func decodeObject(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("model response is null")
	}
	return raw, nil
}
