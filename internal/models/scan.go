package models

import (
	"strings"
	"time"
)

// Status is the halal verdict reported for a product
type Status string

const (
	StatusHalal    Status = "halal"
	StatusHaram    Status = "haram"
	StatusMushbooh Status = "mushbooh"
)

// UnknownProductName is used when the prediction does not name the product
const UnknownProductName = "Unknown Product"

// ParseStatus normalizes s into a Status. Anything unrecognized is mushbooh,
// never halal.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusHalal:
		return StatusHalal
	case StatusHaram:
		return StatusHaram
	default:
		return StatusMushbooh
	}
}

// ScanResult represents one analysis outcome for a product photo
type ScanResult struct {
	HalalStatus       Status   `json:"halalStatus"`
	HalalLogoDetected bool     `json:"halalLogoDetected"`
	Barcode           string   `json:"barcode,omitempty"`
	ProductName       string   `json:"productName"`
	Ingredients       []string `json:"ingredients"`
	ECodes            []string `json:"eCodes"`
	Confidence        float64  `json:"confidence"` // fraction in [0,1]
}

// Clone returns a copy that shares no slices with r
func (r ScanResult) Clone() ScanResult {
	out := r
	out.Ingredients = append([]string{}, r.Ingredients...)
	out.ECodes = append([]string{}, r.ECodes...)
	return out
}

// ScanRecord is a ScanResult saved to a user's history
type ScanRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	ImageURI string `json:"imageUri,omitempty"`
	ScanResult
	CreatedAt time.Time `json:"timestamp"`
}
