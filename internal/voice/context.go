package voice

import (
	"encoding/json"
	"fmt"
	"strings"

	"minimarket-copilot/internal/actions"
	"minimarket-copilot/internal/core"
)

// StoreProfile is the compact store description given to the model.
type StoreProfile struct {
	ID           string
	Name         string
	TaxID        string
	Timezone     string
	Currency     string
	Capabilities []actions.Name
}

func NewStoreProfile(st *core.Store, capabilities []actions.Name) StoreProfile {
	p := StoreProfile{
		ID:           st.ID.String(),
		Name:         st.Name,
		Timezone:     st.Timezone,
		Currency:     st.Currency,
		Capabilities: capabilities,
	}
	if st.TaxID != nil {
		p.TaxID = *st.TaxID
	}
	return p
}

func (p StoreProfile) Render() string {
	caps := make([]string, 0, len(p.Capabilities))
	for _, c := range p.Capabilities {
		caps = append(caps, string(c))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Store ID: %s\n", p.ID)
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Tax ID: %s\n", orNone(p.TaxID))
	fmt.Fprintf(&b, "Timezone: %s\n", orNone(p.Timezone))
	fmt.Fprintf(&b, "Currency: %s\n", orNone(p.Currency))
	fmt.Fprintf(&b, "Capabilities: %s", strings.Join(caps, ", "))
	return b.String()
}

// RenderHistory writes turns oldest first as alternating User/Assistant lines.
// Turns with an empty transcript are skipped.
func RenderHistory(turns []Turn) string {
	var lines []string
	for _, t := range turns {
		text := strings.TrimSpace(t.Transcript.Text)
		if text == "" {
			continue
		}
		lines = append(lines, "User: "+text)
		if reply := assistantReply(t.Action); reply != "" {
			lines = append(lines, "Assistant: "+reply)
		}
	}
	return strings.Join(lines, "\n")
}

// assistantReply derives what the assistant said: the stored result message,
// else the error, else the action type.
func assistantReply(a *ActionRecord) string {
	if a == nil {
		return ""
	}
	if len(a.Result) > 0 {
		var res struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(a.Result, &res); err == nil && strings.TrimSpace(res.Message) != "" {
			return strings.TrimSpace(res.Message)
		}
	}
	if a.Error != nil && strings.TrimSpace(*a.Error) != "" {
		return strings.TrimSpace(*a.Error)
	}
	return a.ActionType
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}
