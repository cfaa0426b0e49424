// Package analysis derives lightweight, rule-based metadata from request
// text: an intent tag and a keyword vote between update and request.
package analysis

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agenthands/intake/internal/core/model"
)

const (
	IntentUrgent            = "urgent"
	IntentLoanRelated       = "loan_related"
	IntentAccountRelated    = "account_related"
	IntentInformationUpdate = "information_update"
	IntentGeneralInquiry    = "general_inquiry"
	IntentUnknown           = "unknown"
)

// PreviewLen is how much of the text is kept in ProcessedText.
const PreviewLen = 500

type intentRule struct {
	intent   string
	keywords []string
}

// checked in order; the first rule with any keyword present wins
var intentRules = []intentRule{
	{IntentUrgent, []string{"urgent", "immediately", "asap"}},
	{IntentLoanRelated, []string{"loan"}},
	{IntentAccountRelated, []string{"account"}},
	{IntentInformationUpdate, []string{"update"}},
	{IntentGeneralInquiry, []string{"question", "inquiry", "help"}},
}

// Analysis is persisted under the "analysis" key.
type Analysis struct {
	Intent        string    `json:"intent"`
	ProcessedText string    `json:"processedText"`
	AnalysisDate  time.Time `json:"analysisDate"`
}

func AnalyzeIntent(text string) string {
	lower := strings.ToLower(text)
	for _, r := range intentRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.intent
			}
		}
	}
	return IntentUnknown
}

func Analyze(rec model.RawRecord, now time.Time) Analysis {
	text := rec.Text()
	return Analysis{
		Intent:        AnalyzeIntent(text),
		ProcessedText: preview(text, PreviewLen),
		AnalysisDate:  now.UTC(),
	}
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// taxonomy keywords voting for each label
var taxonomy = map[model.Label][]string{
	model.LabelUpdate:  {"progress", "report", "status", "changes", "modify", "revised"},
	model.LabelRequest: {"need", "require", "assistance", "help", "information", "please provide"},
}

// KeywordClassifier labels text by counting taxonomy keywords. It needs no
// model and serves as the offline default. Ties and texts without any
// keyword are labelled request with confidence 0.5.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(ctx context.Context, text string) (model.Label, float64, error) {
	lower := strings.ToLower(text)
	count := func(l model.Label) int {
		n := 0
		for _, kw := range taxonomy[l] {
			n += strings.Count(lower, kw)
		}
		return n
	}

	updates, requests := count(model.LabelUpdate), count(model.LabelRequest)
	total := updates + requests
	switch {
	case total == 0 || updates == requests:
		return model.LabelRequest, 0.5, nil
	case updates > requests:
		return model.LabelUpdate, float64(updates) / float64(total), nil
	default:
		return model.LabelRequest, float64(requests) / float64(total), nil
	}
}
