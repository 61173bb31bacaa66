package ml

import (
	"context"
	"fmt"
)

// Model is a prediction service that analyzes product photos
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// ProcessImage takes an image and returns the service's raw response object
	ProcessImage(ctx context.Context, imageData []byte) (map[string]any, error)
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	// CreateModel creates a new model instance
	CreateModel() (Model, error)
}

// NewModel creates a new model instance based on the model type. configPath may
// be empty, in which case config/<type>.json and environment variables are used.
func NewModel(modelType, configPath string) (Model, error) {
	var factory ModelFactory

	switch modelType {
	case "http":
		config := HTTPConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load http config: %w", err)
		}
		factory = NewHTTPModelFactory(config)
	case "google":
		config := GoogleConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Google config: %w", err)
		}
		factory = NewGoogleModelFactory(config)
	case "static":
		config := StaticConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load static config: %w", err)
		}
		factory = NewStaticModelFactory(config)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}
	return factory.CreateModel()
}
