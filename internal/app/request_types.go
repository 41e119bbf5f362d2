package app

import (
	"io"

	"github.com/google/uuid"
)

// StoreRequest identifies the caller and the store they act on.
type StoreRequest struct {
	StoreID uuid.UUID
	UserID  uuid.UUID
}

// VoiceAudioRequest carries one recorded utterance.
type VoiceAudioRequest struct {
	StoreRequest
	SessionID   *uuid.UUID
	Locale      string
	Device      string
	Audio       io.Reader
	Filename    string
	ContentType string
}

// VoiceTextRequest is a typed (or client-transcribed) utterance.
type VoiceTextRequest struct {
	StoreRequest
	SessionID *uuid.UUID
	Locale    string
	Device    string
	Text      string
}

type SynthesizeRequest struct {
	StoreRequest
	Text string
}

type ProductListRequest struct {
	StoreRequest
	Search string
	Limit  int
}
