package domain

// Stage names one step of the analysis pipeline.
type Stage string

const (
	StageInit           Stage = "init"
	StageReadInit       Stage = "read-init"
	StageReadXMLFile    Stage = "read-xmlfile"
	StageParseInit      Stage = "parse-init"
	StageParseXMLData   Stage = "parse-xmldata"
	StageAnalyseInit    Stage = "analyse-init"
	StageAnalyseImport  Stage = "analyse-import"
	StageAnalyseCatalog Stage = "analyse-isotope"
	StageFinish         Stage = "finish"
)

// Stages is the linear stage order.
var Stages = []Stage{
	StageInit,
	StageReadInit,
	StageReadXMLFile,
	StageParseInit,
	StageParseXMLData,
	StageAnalyseInit,
	StageAnalyseImport,
	StageAnalyseCatalog,
	StageFinish,
}

func ParseStage(raw string) (Stage, bool) {
	for _, s := range Stages {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Loops reports stages that handle one work item per call.
func (s Stage) Loops() bool {
	return s == StageParseXMLData || s == StageAnalyseImport
}

// Next returns the following stage, or "" after finish.
func (s Stage) Next() Stage {
	for i, stage := range Stages {
		if stage == s && i+1 < len(Stages) {
			return Stages[i+1]
		}
	}
	return ""
}

type MessageCode string

const (
	MessageAnalysisStarted     MessageCode = "analysis-started"
	MessageAnalysisReadXMLFile MessageCode = "analysis-readxmlfile"
	MessageAnalysisReadXMLData MessageCode = "analysis-readxmldata"
	MessageAnalysisImport      MessageCode = "analysis-import"
	MessageAnalysisCatalog     MessageCode = "analysis-isotope"
	MessageAnalysisSuccessful  MessageCode = "analysis-successful"
	MessageAnalysisReady       MessageCode = "analysis-ready"
	MessageAnalysisEmpty       MessageCode = "analysis-empty"
	MessageAnalysisError       MessageCode = "analysis-error"
)

var messageTexts = map[MessageCode]string{
	MessageAnalysisStarted:     "Starting the analysis of the import data...",
	MessageAnalysisReadXMLFile: "Reading the XML document...",
	MessageAnalysisReadXMLData: "Preparing the product data of the import document.",
	MessageAnalysisImport:      "Comparing the imported products with the catalog.",
	MessageAnalysisCatalog:     "Scanning the catalog for products missing from the import.",
	MessageAnalysisSuccessful:  "The analysis finished successfully.",
	MessageAnalysisReady:       "The import data has already been analysed.",
	MessageAnalysisEmpty:       "No analysis results are available yet.",
}

func (c MessageCode) Text() string {
	return messageTexts[c]
}

// Report is the reply of one pipeline step. NextStep is empty when the caller
// must stop polling.
type Report struct {
	Progress *float64    `json:"progress,omitempty"`
	NextStep Stage       `json:"next_step,omitempty"`
	Code     MessageCode `json:"code,omitempty"`
	Message  string      `json:"message,omitempty"`
}

func (r Report) Done() bool {
	return r.NextStep == ""
}
