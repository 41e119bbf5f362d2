package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	ErrEmptyText   = errors.New("text is empty")
	ErrTextTooLong = errors.New("text exceeds the speech synthesis limit")
)

// Transcription is the STT result. Text may be empty.
type Transcription struct {
	Text       string `json:"text"`
	ProviderID string `json:"providerId"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename, contentType string) (*Transcription, error)
}

// Speech is synthesized audio ready to stream back to the client.
type Speech struct {
	Audio       []byte
	ContentType string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
}

type SpeechOptions struct {
	STTModel string
	TTSModel string
	Voice    string
	Language string // ISO-639-1 hint for transcription, e.g. "es"
	MaxChars int
}

// OpenAISpeech implements Transcriber and Synthesizer with the OpenAI audio endpoints.
type OpenAISpeech struct {
	client *openai.Client
	opts   SpeechOptions
}

func NewOpenAISpeech(apiKey string, opts SpeechOptions, reqOpts ...option.RequestOption) *OpenAISpeech {
	if opts.STTModel == "" {
		opts.STTModel = "whisper-1"
	}
	if opts.TTSModel == "" {
		opts.TTSModel = "tts-1"
	}
	if opts.Voice == "" {
		opts.Voice = "alloy"
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 5000
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)...)
	return &OpenAISpeech{client: &client, opts: opts}
}

func (s *OpenAISpeech) Transcribe(ctx context.Context, audio io.Reader, filename, contentType string) (*Transcription, error) {
	if filename == "" {
		filename = "audio.webm"
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, contentType),
		Model: openai.AudioModel(s.opts.STTModel),
	}
	if s.opts.Language != "" {
		params.Language = openai.String(s.opts.Language)
	}

	tr, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai transcription error: %w", err)
	}
	return &Transcription{
		Text:       strings.TrimSpace(tr.Text),
		ProviderID: "openai:" + s.opts.STTModel,
	}, nil
}

// CheckSpeechText enforces the synthesis input bounds.
func CheckSpeechText(text string, maxChars int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if n := utf8.RuneCountInString(text); n > maxChars {
		return fmt.Errorf("%w: %d characters, limit %d", ErrTextTooLong, n, maxChars)
	}
	return nil
}

func (s *OpenAISpeech) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if err := CheckSpeechText(text, s.opts.MaxChars); err != nil {
		return nil, err
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.opts.TTSModel),
		Voice:          openai.AudioSpeechNewParamsVoice(s.opts.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech error: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Speech{Audio: audio, ContentType: contentType}, nil
}
