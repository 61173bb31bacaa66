package ml

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

// GoogleConfig holds configuration for the Google model
type GoogleConfig struct {
	BaseConfig
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	ModelName       string `json:"model_name"`
}

// Load loads the Google configuration
func (c *GoogleConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "google", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.ModelName == "" {
		c.ModelName = "gemini-1.5-flash"
	}

	return nil
}

// GoogleModel implements the Model interface for Google's Vertex AI
type GoogleModel struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleModelFactory implements ModelFactory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
}

// NewGoogleModelFactory creates a new Google model factory
func NewGoogleModelFactory(config GoogleConfig) *GoogleModelFactory {
	return &GoogleModelFactory{config: config}
}

// CreateModel creates a new Google model instance
func (f *GoogleModelFactory) CreateModel() (Model, error) {
	return &GoogleModel{
		config: f.config,
	}, nil
}

// Load initializes the Google model
func (m *GoogleModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.ModelName)
	return nil
}

const productPrompt = `Analyze this photo of a packaged food product and report its halal status.
Read the ingredient list and any food additive codes (E-numbers such as E120 or E471).

Respond with a single JSON object and nothing else:
{
	"halalStatus": "halal" | "haram" | "mushbooh",
	"halalLogoDetected": boolean,
	"barcode": string | null,
	"productName": string | null,
	"ingredients": [string],
	"eCodes": [string],
	"confidence": number between 0 and 1
}
Copy each ingredient exactly as printed on the label. If the photo does not show a food
product, respond with {"error": "reason"}.`

// ProcessImage processes an image using Google's Vertex AI
func (m *GoogleModel) ProcessImage(ctx context.Context, imageData []byte) (map[string]any, error) {
	if m.model == nil {
		return nil, fmt.Errorf("model not loaded")
	}

	img := genai.ImageData("jpeg", imageData)

	resp, err := m.model.GenerateContent(ctx, genai.Text(productPrompt), img)
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no response generated")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	return parseModelText(fmt.Sprintf("%v", candidate.Content.Parts[0]))
}

// parseModelText decodes the JSON object in a model reply, with or without a
// markdown code fence around it
func parseModelText(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	raw, err := decodeObject([]byte(strings.TrimSpace(text)))
	if err != nil {
		return nil, fmt.Errorf("%w while parsing %s", err, text)
	}
	if reason, ok := raw["error"].(string); ok && reason != "" {
		return nil, fmt.Errorf("model rejected image: %s", reason)
	}
	return raw, nil
}
