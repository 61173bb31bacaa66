package ml

import (
	"context"
	"fmt"
	"os"
)

// StaticConfig holds configuration for the static model
type StaticConfig struct {
	BaseConfig
	ResponsePath string `json:"response_path"`
}

// Load loads the static configuration
func (c *StaticConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "static", c); err != nil {
		return err
	}

	if c.ResponsePath == "" {
		c.ResponsePath = os.Getenv("STATIC_MODEL_RESPONSE")
	}
	return nil
}

// StaticModel answers every image with the same canned response. It stands in
// for the prediction service during development.
type StaticModel struct {
	config   StaticConfig
	response []byte
}

// StaticModelFactory implements ModelFactory for static models
type StaticModelFactory struct {
	config StaticConfig
}

// NewStaticModelFactory creates a new static model factory
func NewStaticModelFactory(config StaticConfig) *StaticModelFactory {
	return &StaticModelFactory{config: config}
}

// CreateModel creates a new static model instance
func (f *StaticModelFactory) CreateModel() (Model, error) {
	return &StaticModel{
		config: f.config,
	}, nil
}

// Load reads and validates the canned response
func (m *StaticModel) Load(ctx context.Context) error {
	if m.config.ResponsePath == "" {
		return fmt.Errorf("static model response path is not set")
	}
	data, err := os.ReadFile(m.config.ResponsePath)
	if err != nil {
		return fmt.Errorf("failed to read static response: %w", err)
	}
	if _, err := decodeObject(data); err != nil {
		return err
	}
	m.response = data
	return nil
}

// ProcessImage returns a fresh copy of the canned response
func (m *StaticModel) ProcessImage(ctx context.Context, imageData []byte) (map[string]any, error) {
	if m.response == nil {
		return nil, fmt.Errorf("model not loaded")
	}
	if len(imageData) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return decodeObject(m.response)
}
