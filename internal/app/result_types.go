package app

import (
	"minimarket-copilot/internal/core"
	"minimarket-copilot/internal/voice"

	"github.com/google/uuid"
)

// VoiceTurnResult is returned by HandleVoiceAudio and HandleVoiceText.
type VoiceTurnResult struct {
	SessionID  uuid.UUID      `json:"sessionId"`
	Transcript string         `json:"transcript"`
	Response   voice.Response `json:"response"`
}

// SpeechResult is synthesized audio.
type SpeechResult struct {
	Audio       []byte
	ContentType string
}

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.ProductStock `json:"products"`
}

// StockSummaryResult is returned by GetStockSummary.
type StockSummaryResult struct {
	Products int   `json:"products"`
	Units    int64 `json:"units"`
}
