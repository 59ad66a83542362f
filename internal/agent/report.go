package agent

import "encoding/json"

// Report is the validator's structured answer.
type Report struct {
	Summary             string               `json:"summary"`
	Regulations         []ReportedRegulation `json:"verified_regulations"`
	Timeline            []json.RawMessage    `json:"timeline,omitempty"`
	ComplianceChecklist []json.RawMessage    `json:"compliance_checklist,omitempty"`
	RiskWarnings        []string             `json:"warnings,omitempty"`
	ConfidenceScore     float64              `json:"confidence_score"`
	Sources             []string             `json:"sources,omitempty"`
	Limitations         []string             `json:"limitations,omitempty"`
	ValidationResult    string               `json:"validation_result,omitempty"`
	Disclaimer          Disclaimer           `json:"disclaimer"`
}

// ReportedRegulation is one regulation in the answer.
type ReportedRegulation struct {
	Name          string   `json:"name"`
	NameEN        string   `json:"name_en,omitempty"`
	Status        string   `json:"status,omitempty"`
	SourceURL     string   `json:"source_url,omitempty"`
	KeyPoints     []string `json:"key_points,omitempty"`
	Penalties     string   `json:"penalties,omitempty"`
	EffectiveDate string   `json:"effective_date,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
}

// Disclaimer is the bilingual legal disclaimer every answer carries.
type Disclaimer struct {
	ZH string `json:"zh"`
	EN string `json:"en"`
}

// DefaultDisclaimer is attached when the model omits one.
var DefaultDisclaimer = Disclaimer{
	ZH: "本報告僅供參考，不構成法律意見。實際適用請諮詢執業律師或主管機關。",
	EN: "This report is for reference only and does not constitute legal advice. Consult a licensed attorney or the competent authority for your specific situation.",
}

// Normalize fills required fields the model may omit and clamps the
// confidence score to [0, 1].
func (r *Report) Normalize() {
	if r.Disclaimer.ZH == "" {
		r.Disclaimer.ZH = DefaultDisclaimer.ZH
	}
	if r.Disclaimer.EN == "" {
		r.Disclaimer.EN = DefaultDisclaimer.EN
	}
	if r.Regulations == nil {
		r.Regulations = []ReportedRegulation{}
	}
	if r.ValidationResult == "" {
		r.ValidationResult = "ok"
	}
	if r.ConfidenceScore < 0 {
		r.ConfidenceScore = 0
	}
	if r.ConfidenceScore > 1 {
		r.ConfidenceScore = 1
	}
}

// DegradedReport is the answer shell produced when the validator cannot get
// parseable JSON out of the model after all retries. It is explicit about the
// failure instead of inventing content.
func DegradedReport(query string, findings []Finding, cause string) *Report {
	sources := make([]string, 0, len(findings))
	seen := make(map[string]struct{})
	for _, f := range findings {
		if f.URL == "" {
			continue
		}
		if _, dup := seen[f.URL]; dup {
			continue
		}
		seen[f.URL] = struct{}{}
		sources = append(sources, f.URL)
		if len(sources) >= 10 {
			break
		}
	}
	regs := make([]ReportedRegulation, 0, len(findings))
	for _, f := range findings {
		if f.Title == "" {
			continue
		}
		regs = append(regs, ReportedRegulation{Name: f.Title, SourceURL: f.URL, Status: "unverified"})
		if len(regs) >= 10 {
			break
		}
	}
	r := &Report{
		Summary:          "查詢「" + query + "」的研究資料已蒐集完成，但自動彙整失敗，以下僅列出原始資料來源。",
		Regulations:      regs,
		ConfidenceScore:  0.3,
		Sources:          sources,
		RiskWarnings:     []string{"本次回覆未經完整驗證流程，請自行確認來源內容。"},
		Limitations:      []string{"結果彙整失敗: " + cause},
		ValidationResult: "error",
	}
	r.Normalize()
	return r
}
