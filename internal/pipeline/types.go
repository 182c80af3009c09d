package pipeline

import (
	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
)

// Step names.
const (
	StepResolve  = "resolve"
	StepFetch    = "fetch"
	StepClassify = "classify"
	StepScience  = "science"
	StepVideo    = "video"
	StepArticle  = "article"
	StepGeneric  = "generic"
	StepDiscover = "discover"
	StepFinalize = "finalize"
	StepExport   = "export"
)

// Collected slot names.
const (
	SlotResolve    = "resolve"
	SlotFetch      = "fetch"
	SlotClassify   = "classify"
	SlotMetadata   = "metadata"
	SlotPDFLinks   = "pdf_links"
	SlotExtraction = "extraction"
	SlotTranscript = "transcript"
	SlotLinks      = "links"
	SlotExport     = "export"
)

// Pipeline failure reasons.
const (
	ReasonFetchExhausted     graph.Reason = "fetch_exhausted"
	ReasonFetchFailed        graph.Reason = "fetch_failed"
	ReasonUnresolved         graph.Reason = "unresolved_target"
	ReasonUnsupportedContent graph.Reason = "unsupported_content"
)

// Resolution records how a search query was turned into a URL.
type Resolution struct {
	Query  string          `json:"query"`
	URL    string          `json:"url"`
	Record *adapter.Record `json:"record,omitempty"`
}

// Export records where a result was stored.
type Export struct {
	Key      string `json:"key"`
	Location string `json:"location"`
}

// ProcessingError is a run error log entry as reported in a Result. It
// omits the wall-clock time so replays of the same run compare equal; the
// timestamped log stays on the Outcome State.
type ProcessingError struct {
	Step    string `json:"step"`
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

func processingErrors(entries []graph.ErrorEntry) []ProcessingError {
	if len(entries) == 0 {
		return nil
	}
	out := make([]ProcessingError, len(entries))
	for i, e := range entries {
		out[i] = ProcessingError{Step: e.Step, Attempt: e.Attempt, Reason: e.Reason, Message: e.Message}
	}
	return out
}

// Result is the structured output of a successful run. Fields for stages
// that did not run or found nothing are left empty.
type Result struct {
	Target            string              `json:"target"`
	URL               string              `json:"url"`
	ContentType       adapter.Label       `json:"content_type"`
	Confidence        float64             `json:"confidence"`
	Title             string              `json:"title,omitempty"`
	Identifiers       adapter.Identifiers `json:"identifiers"`
	Attempts          int                 `json:"attempts"`
	MetadataComplete  bool                `json:"metadata_complete"`
	FullTextExtracted bool                `json:"full_text_extracted"`
	Records           []adapter.Record    `json:"records,omitempty"`
	PDFLinks          []string            `json:"pdf_links,omitempty"`
	Extraction        *adapter.Extraction `json:"extraction,omitempty"`
	Transcript        *adapter.Transcript `json:"transcript,omitempty"`
	Location          string              `json:"location,omitempty"`
	Errors            []ProcessingError   `json:"processing_errors,omitempty"`
}
