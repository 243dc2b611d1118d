package extract

import "fmt"

// TextType declares what kind of writing a document contains. The choice is
// explicit user input, never auto-detected, because it decides between the
// free local backend and a paid cloud backend.
type TextType string

const (
	// TextPrinted routes pages to the local OCR backend.
	TextPrinted TextType = "printed"

	// TextHandwriting routes pages to a cloud vision backend; local engines
	// perform poorly on cursive and irregular handwriting.
	TextHandwriting TextType = "handwriting"
)

// Quality selects an OCR preset trading speed against accuracy.
type Quality string

const (
	QualityFast     Quality = "fast"
	QualityBalanced Quality = "balanced"
	QualityAccurate Quality = "accurate"
)

// Valid reports whether q is a known preset.
func (q Quality) Valid() bool {
	switch q {
	case QualityFast, QualityBalanced, QualityAccurate:
		return true
	}
	return false
}

// Method tags which stage of the fallback chain produced a result.
type Method string

const (
	MethodLocal       Method = "local"
	MethodCloudDirect Method = "cloud_direct"
	MethodFailed      Method = "failed"
)

// Job identifies one unit of extraction work. Immutable once created; the
// cache key is derived from the file content plus Quality and Language, never
// from Path.
type Job struct {
	Path     string
	TextType TextType
	Quality  Quality
	Language string
}

// String is used in log fields.
func (j Job) String() string {
	return fmt.Sprintf("%s [%s/%s/%s]", j.Path, j.TextType, j.Quality, j.Language)
}

// PageEntry is one unit of extracted text. Confidence is present for local
// OCR results only; cloud transcriptions carry no score. Text is always
// whitespace-trimmed, and empty entries are dropped before storage.
type PageEntry struct {
	Start      int      `json:"start"`
	Text       string   `json:"text"`
	Location   string   `json:"location"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Result is the outcome of one orchestrator run.
type Result struct {
	Entries []PageEntry
	Method  Method
}

// EscalationDecision records the outcome of one low-confidence escalation
// check. It exists only within one page's processing and is never persisted.
type EscalationDecision struct {
	Confidence     float64
	Threshold      float64
	ShouldEscalate bool
	UserConsulted  bool
}
