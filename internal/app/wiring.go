package app

import (
	"strings"

	"minimarket-copilot/internal/actions"
	"minimarket-copilot/internal/ai"
	"minimarket-copilot/internal/config"
	"minimarket-copilot/internal/core"
	"minimarket-copilot/internal/logger"
	"minimarket-copilot/internal/metrics"
	"minimarket-copilot/internal/voice"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Build wires the domain services, the action catalog, the OpenAI clients and
// the voice orchestrator behind one ApplicationService. m may be nil.
func Build(cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger, m *metrics.VoiceMetrics) (ApplicationService, error) {
	ledger := core.NewStockLedger()
	resolver := core.NewProductResolver()
	storeService := core.NewStoreService(pool)
	productService := core.NewProductService(pool, resolver)
	inventoryService := core.NewInventoryService(pool, ledger, resolver)
	reportingService := core.NewReportingService(pool, ledger, resolver, storeService)
	partyService := core.NewPartyService(pool)

	catalog, err := actions.NewCatalog(actions.Services{
		Products:  productService,
		Inventory: inventoryService,
		Reports:   reportingService,
		Parties:   partyService,
		Stores:    storeService,
	}, log)
	if err != nil {
		return nil, err
	}

	agent := ai.NewAgent(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	speech := ai.NewOpenAISpeech(cfg.OpenAI.APIKey, ai.SpeechOptions{
		STTModel: cfg.OpenAI.STTModel,
		TTSModel: cfg.OpenAI.TTSModel,
		Voice:    cfg.OpenAI.TTSVoice,
		Language: LanguageOf(cfg.Voice.Locale),
		MaxChars: cfg.Voice.TTSMaxChars,
	})

	audit := voice.NewAuditRepository(pool)
	sessions := voice.NewSessionResolver(audit, storeService)
	orchestrator, err := voice.NewOrchestrator(agent, catalog, audit, storeService, sessions, log, m, voice.Options{
		HistoryTurns: cfg.Voice.HistoryTurns,
		MaxSteps:     cfg.Voice.MaxSteps,
		Locale:       cfg.Voice.Locale,
	})
	if err != nil {
		return nil, err
	}

	return NewAppService(Deps{
		Turns:         orchestrator,
		Transcriber:   speech,
		Synthesizer:   speech,
		Members:       storeService,
		Products:      productService,
		Reports:       reportingService,
		Log:           log,
		MaxAudioBytes: cfg.Voice.MaxAudioBytes,
		TTSMaxChars:   cfg.Voice.TTSMaxChars,
	}), nil
}

// LanguageOf reduces a locale such as "es-CL" to the ISO-639-1 code "es".
func LanguageOf(locale string) string {
	lang, _, _ := strings.Cut(strings.TrimSpace(locale), "-")
	return strings.ToLower(lang)
}
