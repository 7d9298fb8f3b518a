package service

import (
	"fmt"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// outcome is what a stage handler reports back to the state machine.
type outcome struct {
	// next overrides the following stage; init uses it to resume a run.
	next domain.Stage
	// pending and total describe a self-looping stage that still has work.
	pending int
	total   int
	// finished ends polling, either after finish or when init finds the
	// results already up to date.
	finished bool
	code     domain.MessageCode
	err      error
}

// stageProgress is the progress in percent at which a stage starts, and the
// share of the bar a self-looping stage fills.
var stageProgress = map[domain.Stage]struct{ start, span float64 }{
	domain.StageInit:           {0, 0},
	domain.StageReadInit:       {2, 0},
	domain.StageReadXMLFile:    {5, 0},
	domain.StageParseInit:      {10, 0},
	domain.StageParseXMLData:   {10, 30},
	domain.StageAnalyseInit:    {40, 0},
	domain.StageAnalyseImport:  {40, 50},
	domain.StageAnalyseCatalog: {90, 0},
	domain.StageFinish:         {95, 0},
}

var stageMessages = map[domain.Stage]domain.MessageCode{
	domain.StageReadInit:       domain.MessageAnalysisStarted,
	domain.StageReadXMLFile:    domain.MessageAnalysisReadXMLFile,
	domain.StageParseInit:      domain.MessageAnalysisReadXMLData,
	domain.StageParseXMLData:   domain.MessageAnalysisReadXMLData,
	domain.StageAnalyseInit:    domain.MessageAnalysisImport,
	domain.StageAnalyseImport:  domain.MessageAnalysisImport,
	domain.StageAnalyseCatalog: domain.MessageAnalysisCatalog,
	domain.StageFinish:         domain.MessageAnalysisCatalog,
}

// transition turns the outcome of one step into the reply for the caller.
// A reply without NextStep tells the caller to stop polling.
func transition(stage domain.Stage, out outcome) domain.Report {
	if out.err != nil {
		return domain.Report{Code: domain.MessageAnalysisError, Message: out.err.Error()}
	}
	if out.finished {
		code := out.code
		if code == "" {
			code = domain.MessageAnalysisSuccessful
		}
		return domain.Report{Progress: percent(100), Code: code, Message: code.Text()}
	}

	if stage.Loops() && out.pending > 0 {
		done := out.total - out.pending
		if done < 0 {
			done = 0
		}
		p := stageProgress[stage]
		progress := p.start
		if out.total > 0 {
			progress += p.span * float64(done) / float64(out.total)
		}
		code := stageMessages[stage]
		return domain.Report{
			Progress: percent(progress),
			NextStep: stage,
			Code:     code,
			Message:  fmt.Sprintf("%s (%d/%d)", code.Text(), done, out.total),
		}
	}

	next := out.next
	if next == "" {
		next = stage.Next()
	}
	if next == "" {
		return domain.Report{Progress: percent(100), Code: domain.MessageAnalysisSuccessful, Message: domain.MessageAnalysisSuccessful.Text()}
	}
	code := out.code
	if code == "" {
		code = stageMessages[next]
	}
	return domain.Report{
		Progress: percent(stageProgress[next].start),
		NextStep: next,
		Code:     code,
		Message:  code.Text(),
	}
}

func percent(v float64) *float64 {
	return &v
}
