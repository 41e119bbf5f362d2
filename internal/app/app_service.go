package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"minimarket-copilot/internal/ai"
	"minimarket-copilot/internal/apperr"
	"minimarket-copilot/internal/core"
	"minimarket-copilot/internal/logger"
	"minimarket-copilot/internal/voice"
)

// TurnHandler runs one voice turn. *voice.Orchestrator satisfies it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req voice.TurnRequest) (*voice.TurnResult, error)
}

// Deps are the collaborators of the application service.
type Deps struct {
	Turns         TurnHandler
	Transcriber   ai.Transcriber
	Synthesizer   ai.Synthesizer
	Members       voice.MembershipChecker
	Products      core.ProductService
	Reports       core.ReportingService
	Log           *logger.Logger
	MaxAudioBytes int64
	TTSMaxChars   int
}

type appService struct {
	deps Deps
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(deps Deps) ApplicationService {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.MaxAudioBytes <= 0 {
		deps.MaxAudioBytes = 25 << 20
	}
	if deps.TTSMaxChars <= 0 {
		deps.TTSMaxChars = 5000
	}
	return &appService{deps: deps}
}

func (s *appService) authorize(ctx context.Context, req StoreRequest) error {
	ok, err := s.deps.Members.IsMember(ctx, req.StoreID, req.UserID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "failed to check store membership")
	}
	if !ok {
		return apperr.New(apperr.CodeForbidden, "user is not a member of this store")
	}
	return nil
}

// ── Voice ───────────────────────────────────────────────────────────────────

func (s *appService) HandleVoiceAudio(ctx context.Context, req VoiceAudioRequest) (*VoiceTurnResult, error) {
	if req.Audio == nil {
		return nil, apperr.New(apperr.CodeValidation, "audio is required")
	}
	if err := s.authorize(ctx, req.StoreRequest); err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(io.LimitReader(req.Audio, s.deps.MaxAudioBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "failed to read audio")
	}
	if len(audio) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "audio is empty")
	}
	if int64(len(audio)) > s.deps.MaxAudioBytes {
		return nil, apperr.New(apperr.CodeValidation, fmt.Sprintf("audio exceeds %d bytes", s.deps.MaxAudioBytes))
	}

	tr, err := s.deps.Transcriber.Transcribe(ctx, bytes.NewReader(audio), req.Filename, req.ContentType)
	if err != nil {
		s.deps.Log.Error(ctx, "transcription failed", err)
		return nil, apperr.Wrap(apperr.CodeDependency, err, "transcription failed")
	}
	s.deps.Log.Info(s.deps.Log.WithFields(ctx, map[string]any{
		"provider":    tr.ProviderID,
		"audio_bytes": len(audio),
		"chars":       len(tr.Text),
	}), "audio transcribed")

	return s.turn(ctx, voice.TurnRequest{
		StoreID:    req.StoreID,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Locale:     req.Locale,
		Device:     req.Device,
		Transcript: tr.Text,
		ProviderID: tr.ProviderID,
	})
}

func (s *appService) HandleVoiceText(ctx context.Context, req VoiceTextRequest) (*VoiceTurnResult, error) {
	return s.turn(ctx, voice.TurnRequest{
		StoreID:    req.StoreID,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Locale:     req.Locale,
		Device:     req.Device,
		Transcript: req.Text,
		ProviderID: "text",
	})
}

func (s *appService) turn(ctx context.Context, req voice.TurnRequest) (*VoiceTurnResult, error) {
	res, err := s.deps.Turns.HandleTurn(ctx, req)
	if err != nil {
		return nil, err
	}
	return &VoiceTurnResult{SessionID: res.SessionID, Transcript: res.Transcript, Response: res.Response}, nil
}

func (s *appService) Synthesize(ctx context.Context, req SynthesizeRequest) (*SpeechResult, error) {
	if err := ai.CheckSpeechText(req.Text, s.deps.TTSMaxChars); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, err.Error())
	}
	if err := s.authorize(ctx, req.StoreRequest); err != nil {
		return nil, err
	}
	speech, err := s.deps.Synthesizer.Synthesize(ctx, req.Text)
	if err != nil {
		if errors.Is(err, ai.ErrTextTooLong) || errors.Is(err, ai.ErrEmptyText) {
			return nil, apperr.Wrap(apperr.CodeValidation, err, err.Error())
		}
		s.deps.Log.Error(ctx, "speech synthesis failed", err)
		return nil, apperr.Wrap(apperr.CodeDependency, err, "speech synthesis failed")
	}
	return &SpeechResult{Audio: speech.Audio, ContentType: speech.ContentType}, nil
}

// ── Catalog reads ───────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context, req ProductListRequest) (*ProductListResult, error) {
	if err := s.authorize(ctx, req.StoreRequest); err != nil {
		return nil, err
	}
	products, err := s.deps.Products.ListProducts(ctx, req.StoreID, core.ProductFilter{Search: req.Search, Limit: req.Limit})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to list products")
	}
	if products == nil {
		products = []core.ProductStock{}
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetStockSummary(ctx context.Context, req StoreRequest) (*StockSummaryResult, error) {
	if err := s.authorize(ctx, req); err != nil {
		return nil, err
	}
	totals, err := s.deps.Reports.StockTotal(ctx, req.StoreID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to compute stock totals")
	}
	return &StockSummaryResult{Products: totals.Products, Units: totals.Units}, nil
}
