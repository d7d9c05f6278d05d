package service

import (
	"fmt"
	"strings"

	"github.com/pulso-health/backend/pkg/model"
)

// Prompt templates for the Gemini calls. Pure string assembly; missing profile
// or questionnaire fields render as explanatory placeholders and missing
// numeric fields render as zero so formatting never fails.

const analysisPromptTemplate = `You are a medical AI assistant specialized in ECG analysis.
Analyze the following ECG data and provide insights at TWO levels: professional and layman.

## Patient Profile
- Age: %s
- Gender: %s
- Existing Conditions: %s
- Current Medications: %s

## Session Context
- Time of Day: %s
- Caffeine Consumed (last 2 hrs): %s
- Nicotine Consumed: %s
- Activity Level: %s
- Stress Level: %s/5
- Additional Symptoms: %s

## ECG Session Metrics
- Duration: %.0f seconds
- Average Heart Rate: %.1f BPM
- Maximum Heart Rate: %.1f BPM
- Minimum Heart Rate: %.1f BPM
- R-Peak Count: %d
- HRV (SDNN): %.2f ms
- HRV (RMSSD): %.2f ms

Please provide your analysis in this exact JSON format:
{
  "prediction": "Brief headline describing the main finding (e.g., 'Elevated Heart Rate with Moderate HRV')",
  "detailed_analysis": {
    "rhythm_assessment": "Describe the heart rhythm pattern observed. Is it regular or irregular? What does the R-peak pattern suggest?",
    "rate_analysis": "Analyze the heart rate values. Is the average/max/min within normal range for the patient's profile? What might explain any deviations?",
    "hrv_interpretation": "Interpret the HRV values (SDNN, RMSSD). What do they indicate about the autonomic nervous system and stress levels?",
    "clinical_significance": "What is the overall clinical significance of these findings? Are there any patterns that warrant attention?"
  },
  "clinical_analysis": "Comprehensive medical professional-level analysis summarizing all findings. Use proper medical terminology. Include rhythm, rate, HRV interpretation, and clinical implications. 6-8 sentences.",
  "simple_explanation": "Explain the findings in plain, friendly language that anyone can understand. Use analogies and relate to daily life. Be reassuring where appropriate. Focus on what matters most for the patient. 5-7 sentences.",
  "risk_level": "low|moderate|high|critical",
  "recommendations": [
    "Specific actionable recommendation 1",
    "Specific actionable recommendation 2",
    "Specific actionable recommendation 3",
    "Lifestyle or follow-up recommendation 4"
  ],
  "summary": "One clear, concise sentence summarizing the most important takeaway from this analysis.",
  "confidence": 0.85
}

Guidelines:
- "detailed_analysis" provides structured breakdown of each aspect
- "clinical_analysis" is for healthcare providers - be precise and use medical terminology
- "simple_explanation" is for regular users - avoid jargon, use everyday language
- "summary" must be exactly ONE sentence - the key takeaway a patient should remember
- Keep recommendations practical, specific, and actionable
- Be thorough but not unnecessarily alarming
- Consider the patient's profile (age, conditions, medications) in your analysis

IMPORTANT DISCLAIMER: This analysis is for informational purposes only and does not constitute medical advice. Always consult a qualified healthcare professional for medical concerns.`

// BuildAnalysisPrompt assembles the instructional prompt for an ECG analysis
func BuildAnalysisPrompt(session *model.ECGSession, profile *model.UserProfile, hrv model.HRVMetrics) string {
	age := "Unknown"
	gender := "Unknown"
	conditions := "None reported"
	if profile != nil && profile.MedicalHistory != nil {
		history := profile.MedicalHistory
		if history.AgeAtRecord != nil {
			age = fmt.Sprintf("%d", *history.AgeAtRecord)
		}
		gender = strOrDefault(history.Gender, "Unknown")
		conditions = strOrDefault(history.ExistingConditions, "None reported")
	}

	var questionnaire model.Questionnaire
	if session.Questionnaire != nil {
		questionnaire = *session.Questionnaire
	}
	stress := "Unknown"
	if questionnaire.StressScore != nil {
		stress = fmt.Sprintf("%d", *questionnaire.StressScore)
	}

	return fmt.Sprintf(analysisPromptTemplate,
		age,
		gender,
		conditions,
		medicationNames(profile, "None reported"),
		strOrDefault(questionnaire.TimeOfDay, "Unknown"),
		strOrDefault(questionnaire.CaffeineConsumed, "Unknown"),
		strOrDefault(questionnaire.NicotineConsumed, "Unknown"),
		strOrDefault(questionnaire.ActivityLevel, "Unknown"),
		stress,
		strOrDefault(questionnaire.AdditionalSymptoms, "None"),
		session.DurationSeconds,
		floatOrZero(session.AverageHeartRate),
		floatOrZero(session.MaxHeartRate),
		floatOrZero(session.MinHeartRate),
		session.RPeakCount,
		hrv.SDNN,
		hrv.RMSSD,
	)
}

const chatPromptTemplate = `You are a friendly, knowledgeable cardiac health assistant for the PULSO ECG monitoring app.

Your role is to:
- Answer questions about ECG sessions and heart health
- Explain medical concepts in simple, understandable terms
- Provide helpful wellness recommendations
- Compare sessions when asked
- Be supportive and encouraging

%s

%s

## User's Question
%s

## Response Guidelines
- Be conversational and friendly, like a helpful health companion
- Use simple language that anyone can understand
- If discussing specific data, reference the numbers clearly
- For comparisons, highlight key differences and what they might mean
- Always remind that this is not medical advice for serious concerns
- Keep responses concise but informative (2-4 paragraphs max)
- Use emojis sparingly for friendliness 💚

Respond naturally to the user's question:`

// BuildChatPrompt assembles the conversational prompt from an optional profile
// block, an optional session context block, and the raw user message
func BuildChatPrompt(profile *model.UserProfile, sessionContext, userMessage string) string {
	profileBlock := ""
	if profile != nil {
		age := "Not specified"
		gender := "Not specified"
		conditions := "None reported"
		if profile.MedicalHistory != nil {
			if profile.MedicalHistory.AgeAtRecord != nil {
				age = fmt.Sprintf("%d", *profile.MedicalHistory.AgeAtRecord)
			}
			gender = strOrDefault(profile.MedicalHistory.Gender, "Not specified")
			conditions = strOrDefault(profile.MedicalHistory.ExistingConditions, "None reported")
		}

		profileBlock = fmt.Sprintf(`## Your Profile
- Age: %s
- Gender: %s
- Known Conditions: %s
- Current Medications: %s`,
			age, gender, conditions, medicationNames(profile, "None"))
	}

	return fmt.Sprintf(chatPromptTemplate, profileBlock, sessionContext, userMessage)
}

// medicationNames joins profile medication names with ", ", or returns the
// placeholder when the profile carries none
func medicationNames(profile *model.UserProfile, placeholder string) string {
	if profile == nil || len(profile.Medications) == 0 {
		return placeholder
	}

	names := make([]string, 0, len(profile.Medications))
	for _, m := range profile.Medications {
		names = append(names, m.MedicationName)
	}
	return strings.Join(names, ", ")
}

func strOrDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
