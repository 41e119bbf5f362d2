package web

import (
	"net/http"
	"strconv"
	"strings"

	"minimarket-copilot/internal/app"
)

// voiceTurn accepts a multipart upload with an "audio" part and optional
// sessionId, locale and device fields.
func (h *Handler) voiceTurn(w http.ResponseWriter, r *http.Request) {
	sr, ok := storeRequest(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, r, "audio too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, "expected multipart/form-data with an audio file", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, r, "audio file is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer file.Close()

	sessionID, err := parseSessionID(r.FormValue("sessionId"))
	if err != nil {
		writeError(w, r, "invalid sessionId", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	res, err := h.svc.HandleVoiceAudio(r.Context(), app.VoiceAudioRequest{
		StoreRequest: sr,
		SessionID:    sessionID,
		Locale:       r.FormValue("locale"),
		Device:       r.FormValue("device"),
		Audio:        file,
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, res)
}

type voiceTextBody struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId,omitempty"`
	Locale    string `json:"locale,omitempty"`
	Device    string `json:"device,omitempty"`
}

func (h *Handler) voiceText(w http.ResponseWriter, r *http.Request) {
	sr, ok := storeRequest(w, r)
	if !ok {
		return
	}
	var body voiceTextBody
	if !decodeJSON(w, r, &body) {
		return
	}
	sessionID, err := parseSessionID(body.SessionID)
	if err != nil {
		writeError(w, r, "invalid sessionId", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	res, err := h.svc.HandleVoiceText(r.Context(), app.VoiceTextRequest{
		StoreRequest: sr,
		SessionID:    sessionID,
		Locale:       body.Locale,
		Device:       body.Device,
		Text:         body.Text,
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, res)
}

// voiceTTS returns raw audio bytes rather than JSON.
func (h *Handler) voiceTTS(w http.ResponseWriter, r *http.Request) {
	sr, ok := storeRequest(w, r)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	speech, err := h.svc.Synthesize(r.Context(), app.SynthesizeRequest{StoreRequest: sr, Text: body.Text})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", speech.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(speech.Audio)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(speech.Audio)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	sr, ok := storeRequest(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, "limit must be a non-negative integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}

	res, err := h.svc.ListProducts(r.Context(), app.ProductListRequest{
		StoreRequest: sr,
		Search:       strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:        limit,
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) stockSummary(w http.ResponseWriter, r *http.Request) {
	sr, ok := storeRequest(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetStockSummary(r.Context(), sr)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, res)
}
