package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/antoniostano/kiosk/internal/piimask"
)

// unmarshalInnerTaskJSON parses an inner task's JSON output, falling back to
// kaptinlin/jsonrepair once before giving up: LLM-produced JSON occasionally
// comes back with a trailing comma or an unescaped quote, and retrying the
// repaired text is cheaper than treating the whole inner task as failed.
func unmarshalInnerTaskJSON(raw string, v any) error {
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), v)
}

const (
	sttFallbackText      = "ごめんね、もう一回言ってね"
	chatFallbackText     = "ごめんね、もう一回言ってね"
	consentAskText       = "覚えていい？"
	consentForgetText    = "さっきのことは忘れるね"
	fallbackSummaryTitle = "要約"
	fallbackSummaryBody  = "要約を生成できませんでした。"
)

// legacyPersonalWakePrefixes are the historic STT spellings of the
// "パーソナル、X" wake phrase; both the Japanese comma and a plain ASCII
// comma show up in transcripts depending on the STT backend's punctuation
// model.
var legacyPersonalWakePrefixes = []string{"パーソナル、", "パーソナル,"}

// parseLegacyPersonalWakePhrase reports whether text is the historic
// "パーソナル、X" wake phrase and, if so, extracts the trailing name X.
func parseLegacyPersonalWakePhrase(text string) (name string, ok bool) {
	trimmed := strings.TrimSpace(text)
	for _, prefix := range legacyPersonalWakePrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
			if name == "" {
				return "", false
			}
			return name, true
		}
	}
	return "", false
}

func personalWakeAckText(name string) string {
	return name + "さん、こんにちは"
}

type consentDecisionDTO struct {
	Answer string `json:"answer"`
}

// parseConsentDecision reports ok=false for malformed JSON or any answer
// other than yes/no/unknown; the reducer treats that the same as "unknown".
func parseConsentDecision(raw string) (answer string, ok bool) {
	var dto consentDecisionDTO
	if err := unmarshalInnerTaskJSON(raw, &dto); err != nil {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(dto.Answer)) {
	case "yes", "no", "unknown":
		return strings.ToLower(strings.TrimSpace(dto.Answer)), true
	default:
		return "", false
	}
}

type memoryCandidateDTO struct {
	Kind        string `json:"kind"`
	Value       string `json:"value"`
	SourceQuote string `json:"source_quote"`
}

// parseMemoryCandidate validates kind against the enum and requires a
// non-empty trimmed value; anything else is rejected outright rather than
// coerced, per the reducer's "do not guess intent" discipline for malformed
// provider output.
func parseMemoryCandidate(raw string) (*MemoryCandidate, bool) {
	var dto memoryCandidateDTO
	if err := unmarshalInnerTaskJSON(raw, &dto); err != nil {
		return nil, false
	}
	kind := MemoryKind(strings.ToLower(strings.TrimSpace(dto.Kind)))
	if !validMemoryKind(kind) {
		return nil, false
	}
	value := strings.TrimSpace(dto.Value)
	if value == "" {
		return nil, false
	}
	return &MemoryCandidate{
		Kind:        kind,
		Value:       value,
		SourceQuote: strings.TrimSpace(dto.SourceQuote),
	}, true
}

type sessionSummaryDTO struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Topics     []string `json:"topics"`
	StaffNotes []string `json:"staff_notes"`
}

func fallbackSessionSummary() SessionSummaryInput {
	return SessionSummaryInput{
		Title:   fallbackSummaryTitle,
		Summary: fallbackSummaryBody,
	}
}

// parseSessionSummary normalizes (trim, collapse whitespace, PII-mask) and
// clamps the inner task's JSON output to the session-summary pending-input
// shape. Any parse or validation failure degrades to the fixed fallback DTO
// rather than dropping the store write, per the error-handling contract.
func parseSessionSummary(raw string) SessionSummaryInput {
	var dto sessionSummaryDTO
	if err := unmarshalInnerTaskJSON(raw, &dto); err != nil {
		return fallbackSessionSummary()
	}

	title := normalizeSummaryField(dto.Title, 60)
	summary := normalizeSummaryField(dto.Summary, 400)
	if title == "" || summary == "" {
		return fallbackSessionSummary()
	}

	topics := clampStringList(dto.Topics, 5, 40)
	staffNotes := clampStringList(dto.StaffNotes, 5, 80)

	return SessionSummaryInput{
		Title:      title,
		Summary:    summary,
		Topics:     topics,
		StaffNotes: staffNotes,
	}
}

func normalizeSummaryField(raw string, maxLen int) string {
	collapsed := strings.Join(strings.Fields(raw), " ")
	masked, _ := piimask.Mask(collapsed)
	if len([]rune(masked)) > maxLen {
		masked = string([]rune(masked)[:maxLen])
	}
	return strings.TrimSpace(masked)
}

func clampStringList(items []string, maxItems, maxLen int) []string {
	if len(items) == 0 {
		return nil
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		normalized := normalizeSummaryField(item, maxLen)
		if normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}
