package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pulso-health/backend/pkg/model"
)

// Defaults applied when the model reply parses but omits fields
const (
	defaultPrediction             = "ECG Analysis Complete"
	defaultConfidence             = 0.75
	fallbackGenericRecommendation = "Please consult a healthcare professional for interpretation"
)

// analysisReply mirrors the JSON document the analysis prompt asks for.
// detailed_analysis may legitimately arrive as an object or a plain string.
type analysisReply struct {
	Prediction        *string         `json:"prediction"`
	DetailedAnalysis  json.RawMessage `json:"detailed_analysis"`
	ClinicalAnalysis  *string         `json:"clinical_analysis"`
	SimpleExplanation *string         `json:"simple_explanation"`
	RiskLevel         *string         `json:"risk_level"`
	Recommendations   []string        `json:"recommendations"`
	Summary           *string         `json:"summary"`
	Confidence        *float64        `json:"confidence"`
}

type detailedBreakdown struct {
	RhythmAssessment     *string `json:"rhythm_assessment"`
	RateAnalysis         *string `json:"rate_analysis"`
	HRVInterpretation    *string `json:"hrv_interpretation"`
	ClinicalSignificance *string `json:"clinical_significance"`
}

// ParseAnalysisResponse reshapes the model's free-text reply into an
// AnalysisResult. The model's output format is not contractually guaranteed,
// so this is a documented best-effort parse: strip a markdown code fence,
// slice from the first "{" to the last "}", and decode that substring. Any
// parse failure produces a fixed-shape fallback; this function never errors.
func ParseAnalysisResponse(raw string) model.AnalysisResult {
	clean := stripCodeFence(raw)

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		var reply analysisReply
		if err := json.Unmarshal([]byte(clean[start:end+1]), &reply); err == nil {
			return resultFromReply(reply)
		}
	}

	return fallbackResult(raw)
}

// stripCodeFence removes a leading/trailing triple-backtick fence, with or
// without a language tag on the opening fence
func stripCodeFence(text string) string {
	clean := strings.TrimSpace(text)
	if !strings.HasPrefix(clean, "```") {
		return clean
	}

	if newline := strings.Index(clean, "\n"); newline > 0 {
		clean = clean[newline+1:]
	}
	if strings.HasSuffix(clean, "```") {
		clean = strings.TrimSpace(strings.TrimSuffix(clean, "```"))
	}

	return clean
}

func resultFromReply(reply analysisReply) model.AnalysisResult {
	recommendations := reply.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}

	return model.AnalysisResult{
		Prediction:       valueOr(reply.Prediction, defaultPrediction),
		ConfidenceScore:  confidenceOr(reply.Confidence, defaultConfidence),
		RiskLevel:        normalizeRiskLevel(reply.RiskLevel),
		Recommendations:  recommendations,
		ClinicalAnalysis: valueOr(reply.ClinicalAnalysis, ""),
		DiagnosisSummary: valueOr(reply.SimpleExplanation, ""),
		DetailedAnalysis: renderDetailedAnalysis(reply.DetailedAnalysis),
		Summary:          valueOr(reply.Summary, ""),
	}
}

// renderDetailedAnalysis turns the nested breakdown into a fixed four-section
// labeled block, substituting "N/A" for missing subsections. A breakdown that
// arrives as a plain string is used verbatim.
func renderDetailedAnalysis(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var breakdown detailedBreakdown
	if err := json.Unmarshal(raw, &breakdown); err == nil {
		return fmt.Sprintf(`**Rhythm Assessment:** %s

**Rate Analysis:** %s

**HRV Interpretation:** %s

**Clinical Significance:** %s`,
			valueOr(breakdown.RhythmAssessment, "N/A"),
			valueOr(breakdown.RateAnalysis, "N/A"),
			valueOr(breakdown.HRVInterpretation, "N/A"),
			valueOr(breakdown.ClinicalSignificance, "N/A"),
		)
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	return ""
}

// fallbackResult is the fixed-shape result for unparseable replies: the raw
// text truncated to 200 characters becomes the prediction headline
func fallbackResult(raw string) model.AnalysisResult {
	prediction := raw
	if runes := []rune(raw); len(runes) > 200 {
		prediction = string(runes[:200])
	}

	return model.AnalysisResult{
		Prediction:       prediction,
		ConfidenceScore:  0.5,
		RiskLevel:        model.RiskLevelLow,
		Recommendations:  []string{fallbackGenericRecommendation},
		ClinicalAnalysis: "",
		DiagnosisSummary: "",
		DetailedAnalysis: "",
		Summary:          "",
	}
}

// normalizeRiskLevel maps absent or unrecognized values to low so the result
// always carries a member of the closed risk set
func normalizeRiskLevel(s *string) model.RiskLevel {
	if s == nil {
		return model.RiskLevelLow
	}
	level := model.RiskLevel(strings.ToLower(strings.TrimSpace(*s)))
	if !level.IsValid() {
		return model.RiskLevelLow
	}
	return level
}

func confidenceOr(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}

func valueOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
