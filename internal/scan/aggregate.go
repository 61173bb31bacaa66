// Package scan turns raw prediction responses into scan results and annotates them.
package scan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/franckalain/halalscan/internal/models"
)

// Aggregate builds a ScanResult from a raw prediction response. Missing or
// mistyped fields fall back to their defaults; a nil map yields a result made
// only of defaults.
func Aggregate(raw map[string]any) models.ScanResult {
	result := models.ScanResult{
		HalalStatus: models.StatusMushbooh,
		ProductName: models.UnknownProductName,
		Ingredients: []string{},
		ECodes:      []string{},
	}

	if s, ok := raw["halalStatus"].(string); ok {
		result.HalalStatus = models.ParseStatus(s)
	}
	if b, ok := raw["halalLogoDetected"].(bool); ok {
		result.HalalLogoDetected = b
	}
	if s, ok := raw["barcode"].(string); ok {
		result.Barcode = strings.TrimSpace(s)
	}
	if s, ok := raw["productName"].(string); ok && strings.TrimSpace(s) != "" {
		result.ProductName = s
	}
	result.Ingredients = stringList(raw["ingredients"], false)
	result.ECodes = uniqueFold(stringList(raw["eCodes"], true))
	result.Confidence = fraction(raw["confidence"])

	return result
}

// Decode parses a JSON prediction response. Empty input and null give a default
// result; any JSON value other than an object is an error.
func Decode(data []byte) (models.ScanResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Aggregate(nil), nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.ScanResult{}, fmt.Errorf("prediction response is not a JSON object: %w", err)
	}
	return Aggregate(raw), nil
}

func stringList(v any, skipEmpty bool) []string {
	out := []string{}
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok && !(skipEmpty && strings.TrimSpace(s) == "") {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range list {
			if !(skipEmpty && strings.TrimSpace(s) == "") {
				out = append(out, s)
			}
		}
	}
	return out
}

// uniqueFold drops case-insensitive duplicates, keeping the first spelling
func uniqueFold(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		key := strings.ToUpper(code)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, code)
	}
	return out
}

func fraction(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}
