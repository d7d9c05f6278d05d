package model

import "time"

// UserProfile represents a user's medical profile
type UserProfile struct {
	UserID         string            `json:"user_id"`
	MedicalHistory *MedicalHistory   `json:"medical_history,omitempty"`
	Medications    []MedicationEntry `json:"medications,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// MedicalHistory represents a user's recorded medical background
type MedicalHistory struct {
	AgeAtRecord        *int    `json:"age_at_record,omitempty"`
	Gender             *string `json:"gender,omitempty"`
	ExistingConditions *string `json:"existing_conditions,omitempty"`
}

// MedicationEntry represents a single medication on a user's profile
type MedicationEntry struct {
	ID             string     `json:"id"`
	MedicationName string     `json:"medication_name"`
	Dosage         *string    `json:"dosage,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
}

// ECGSession represents a recorded ECG monitoring session
type ECGSession struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	CreatedAt        time.Time      `json:"created_at"`
	DurationSeconds  float64        `json:"duration_seconds"`
	AverageHeartRate *float64       `json:"average_heart_rate,omitempty"`
	MaxHeartRate     *float64       `json:"max_heart_rate,omitempty"`
	MinHeartRate     *float64       `json:"min_heart_rate,omitempty"`
	RPeakCount       int            `json:"r_peak_count"`
	ECGImageURL      *string        `json:"ecg_image_url,omitempty"`
	Questionnaire    *Questionnaire `json:"questionnaire,omitempty"`
	RPeaks           []RPeak        `json:"r_peaks,omitempty"`
}

// Questionnaire holds the pre-session context answers from the user
type Questionnaire struct {
	TimeOfDay          *string `json:"time_of_day,omitempty"`
	CaffeineConsumed   *string `json:"caffeine_consumed,omitempty"`
	NicotineConsumed   *string `json:"nicotine_consumed,omitempty"`
	ActivityLevel      *string `json:"activity_level,omitempty"`
	StressScore        *int    `json:"stress_score,omitempty"`
	AdditionalSymptoms *string `json:"additional_symptoms,omitempty"`
}

// RPeak represents a single detected heartbeat. RRIntervalMS is the elapsed
// time since the previous peak in milliseconds; zero for the first peak.
type RPeak struct {
	Index        int     `json:"index"`
	TimestampMS  float64 `json:"timestamp_ms"`
	RRIntervalMS float64 `json:"rr_interval_ms"`
}

// HRVMetrics holds time-domain heart-rate-variability metrics in milliseconds
type HRVMetrics struct {
	SDNN  float64 `json:"sdnn"`
	RMSSD float64 `json:"rmssd"`
}

// RiskLevel represents the assessed risk of an ECG analysis
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// IsValid reports whether the risk level is one of the known values
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLevelLow, RiskLevelModerate, RiskLevelHigh, RiskLevelCritical:
		return true
	}
	return false
}

// Intent classifies the purpose of a chat message
type Intent string

const (
	IntentSessionSpecific Intent = "session_specific"
	IntentComparison      Intent = "comparison"
	IntentTrendAnalysis   Intent = "trend_analysis"
	IntentSessionQuery    Intent = "session_query"
	IntentGeneralHealth   Intent = "general_health"
)

// AnalysisResult represents the structured outcome of an ECG AI analysis
type AnalysisResult struct {
	ID               string    `json:"id,omitempty"`
	SessionID        string    `json:"session_id,omitempty"`
	Prediction       string    `json:"prediction"`
	ConfidenceScore  float64   `json:"confidence_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	Recommendations  []string  `json:"recommendations"`
	ClinicalAnalysis string    `json:"clinical_analysis"`
	DiagnosisSummary string    `json:"diagnosis_summary"`
	DetailedAnalysis string    `json:"detailed_analysis"`
	Summary          string    `json:"summary"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

// ChatExchange represents one stored user message and the assistant's reply
type ChatExchange struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Intent      Intent    `json:"intent"`
	SessionIDs  []string  `json:"session_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnalysisReport represents an exported PDF report of an analysis
type AnalysisReport struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	BlobName  string    `json:"blob_name"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
