package app

import (
	"context"
)

// ApplicationService is the single interface the HTTP adapter calls.
// It decouples presentation from business logic. Implementations must contain
// no display logic of any kind.
type ApplicationService interface {
	// HandleVoiceAudio transcribes the uploaded audio and runs one voice turn.
	// An empty transcription ends the turn with an empty answer.
	HandleVoiceAudio(ctx context.Context, req VoiceAudioRequest) (*VoiceTurnResult, error)

	// HandleVoiceText runs one voice turn from already-transcribed text.
	HandleVoiceText(ctx context.Context, req VoiceTextRequest) (*VoiceTurnResult, error)

	// Synthesize converts a reply to speech for the store member.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*SpeechResult, error)

	// ListProducts returns catalog products with their available stock.
	ListProducts(ctx context.Context, req ProductListRequest) (*ProductListResult, error)

	// GetStockSummary returns store-wide stock totals.
	GetStockSummary(ctx context.Context, req StoreRequest) (*StockSummaryResult, error)
}
