package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

// PDFGenerator generates ECG analysis reports
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// ReportData contains all data needed for report generation
type ReportData struct {
	Profile  *model.UserProfile
	Session  *model.ECGSession
	HRV      model.HRVMetrics
	Analysis *model.AnalysisResult
}

// Generate creates a PDF report from the provided data
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	g.logger.Info("generating PDF report",
		zap.String("session_id", data.Session.ID),
	)

	// Create new PDF
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	// Add page
	pdf.AddPage()

	// Add title
	g.addTitle(pdf, "ECG Analysis Report", data.Session)

	// Add all sections
	g.addPatientInfo(pdf, data.Profile)
	g.addSessionMetrics(pdf, data.Session, data.HRV)
	g.addAnalysisOutcome(pdf, data.Analysis)
	g.addClinicalAnalysis(pdf, data.Analysis)
	g.addSimpleExplanation(pdf, data.Analysis)
	g.addDetailedBreakdown(pdf, data.Analysis)
	g.addRecommendations(pdf, data.Analysis)
	g.addDisclaimer(pdf)

	// Generate PDF bytes
	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("PDF report generated successfully",
		zap.Int("size_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

// addTitle adds the report title and header information
func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, title string, session *model.ECGSession) {
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Session: %s", session.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Recorded: %s", session.CreatedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(10)
}

// addSectionHeader adds a section header
func (g *PDFGenerator) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
}

// addPatientInfo adds the patient information section
func (g *PDFGenerator) addPatientInfo(pdf *gofpdf.Fpdf, profile *model.UserProfile) {
	g.addSectionHeader(pdf, "Patient Information")

	if profile == nil {
		pdf.CellFormat(0, 8, "No medical profile on record.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	if history := profile.MedicalHistory; history != nil {
		if history.AgeAtRecord != nil {
			pdf.CellFormat(0, 5, fmt.Sprintf("Age: %d", *history.AgeAtRecord), "", 1, "L", false, 0, "")
		}
		if history.Gender != nil {
			pdf.CellFormat(0, 5, fmt.Sprintf("Gender: %s", *history.Gender), "", 1, "L", false, 0, "")
		}
		if history.ExistingConditions != nil && *history.ExistingConditions != "" {
			pdf.CellFormat(0, 5, fmt.Sprintf("Known conditions: %s", *history.ExistingConditions), "", 1, "L", false, 0, "")
		}
	}

	if len(profile.Medications) > 0 {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Medications", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, med := range profile.Medications {
			line := med.MedicationName
			if med.Dosage != nil && *med.Dosage != "" {
				line = fmt.Sprintf("%s (%s)", line, *med.Dosage)
			}
			pdf.CellFormat(0, 5, fmt.Sprintf("  - %s", line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(5)
}

// addSessionMetrics adds the recording metrics section
func (g *PDFGenerator) addSessionMetrics(pdf *gofpdf.Fpdf, session *model.ECGSession, hrv model.HRVMetrics) {
	g.addSectionHeader(pdf, "Session Metrics")

	pdf.CellFormat(0, 5, fmt.Sprintf("Duration: %.0f seconds", session.DurationSeconds), "", 1, "L", false, 0, "")
	if session.AverageHeartRate != nil {
		pdf.CellFormat(0, 5, fmt.Sprintf("Average heart rate: %.1f bpm", *session.AverageHeartRate), "", 1, "L", false, 0, "")
	}
	if session.MaxHeartRate != nil && session.MinHeartRate != nil {
		pdf.CellFormat(0, 5, fmt.Sprintf("Heart rate range: %.1f - %.1f bpm", *session.MinHeartRate, *session.MaxHeartRate), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("R-peaks detected: %d", session.RPeakCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("HRV (SDNN): %.2f ms", hrv.SDNN), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("HRV (RMSSD): %.2f ms", hrv.RMSSD), "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

// addAnalysisOutcome adds the headline prediction section
func (g *PDFGenerator) addAnalysisOutcome(pdf *gofpdf.Fpdf, analysis *model.AnalysisResult) {
	g.addSectionHeader(pdf, "Analysis Outcome")

	pdf.SetFont("Arial", "B", 11)
	pdf.MultiCell(0, 6, analysis.Prediction, "", "L", false)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Confidence: %.0f%%", analysis.ConfidenceScore*100), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Risk level: %s", strings.ToUpper(string(analysis.RiskLevel))), "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

// addClinicalAnalysis adds the clinical analysis section
func (g *PDFGenerator) addClinicalAnalysis(pdf *gofpdf.Fpdf, analysis *model.AnalysisResult) {
	g.addSectionHeader(pdf, "Clinical Analysis")

	if analysis.ClinicalAnalysis == "" {
		pdf.CellFormat(0, 8, "No clinical analysis available.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.MultiCell(0, 5, analysis.ClinicalAnalysis, "", "L", false)
	pdf.Ln(5)
}

// addSimpleExplanation adds the plain-language summary section
func (g *PDFGenerator) addSimpleExplanation(pdf *gofpdf.Fpdf, analysis *model.AnalysisResult) {
	if analysis.Summary == "" {
		return
	}

	g.addSectionHeader(pdf, "In Plain Language")
	pdf.MultiCell(0, 5, analysis.Summary, "", "L", false)
	pdf.Ln(5)
}

// addDetailedBreakdown adds the detailed rhythm breakdown section
func (g *PDFGenerator) addDetailedBreakdown(pdf *gofpdf.Fpdf, analysis *model.AnalysisResult) {
	if analysis.DetailedAnalysis == "" {
		return
	}

	g.addSectionHeader(pdf, "Detailed Breakdown")
	pdf.MultiCell(0, 5, analysis.DetailedAnalysis, "", "L", false)
	pdf.Ln(5)
}

// addRecommendations adds the recommendations section
func (g *PDFGenerator) addRecommendations(pdf *gofpdf.Fpdf, analysis *model.AnalysisResult) {
	g.addSectionHeader(pdf, "Recommendations")

	if len(analysis.Recommendations) == 0 {
		pdf.CellFormat(0, 8, "No recommendations provided.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, rec := range analysis.Recommendations {
		pdf.MultiCell(0, 5, fmt.Sprintf("  - %s", rec), "", "L", false)
	}
	pdf.Ln(5)
}

// addDisclaimer adds the footer disclaimer
func (g *PDFGenerator) addDisclaimer(pdf *gofpdf.Fpdf) {
	pdf.Ln(5)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, "This report is generated by an AI system and is not a medical diagnosis. "+
		"Always consult a qualified healthcare professional for interpretation of ECG data.", "", "L", false)
}
