package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"minimarket-copilot/internal/app"
	"minimarket-copilot/internal/voice"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	app.ApplicationService
	text string
}

func (f *fakeApp) HandleVoiceText(_ context.Context, req app.VoiceTextRequest) (*app.VoiceTurnResult, error) {
	f.text = req.Text
	return &app.VoiceTurnResult{Transcript: req.Text, Response: voice.Response{Type: voice.DecisionAnswer, Message: "Hay 12."}}, nil
}

func (f *fakeApp) GetStockSummary(context.Context, app.StoreRequest) (*app.StockSummaryResult, error) {
	return &app.StockSummaryResult{Products: 1, Units: 12}, nil
}

func TestRun_Say(t *testing.T) {
	svc := &fakeApp{}
	out := &bytes.Buffer{}
	store := app.StoreRequest{StoreID: uuid.New(), UserID: uuid.New()}

	require.NoError(t, Run(context.Background(), svc, store, "es-CL", []string{"say", "cuántas", "cocas", "hay"}, out))
	assert.Equal(t, "cuántas cocas hay", svc.text)

	var res app.VoiceTurnResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "Hay 12.", res.Response.Message)
}

func TestRun_Stock(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, Run(context.Background(), &fakeApp{}, app.StoreRequest{}, "", []string{"stock"}, out))
	assert.JSONEq(t, `{"products":1,"units":12}`, out.String())
}

func TestRun_UsageErrors(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, Run(ctx, &fakeApp{}, app.StoreRequest{}, "", nil, &bytes.Buffer{}))
	assert.Error(t, Run(ctx, &fakeApp{}, app.StoreRequest{}, "", []string{"say"}, &bytes.Buffer{}))
	assert.ErrorContains(t, Run(ctx, &fakeApp{}, app.StoreRequest{}, "", []string{"commit"}, &bytes.Buffer{}), "unknown command")
}
