package interview

import (
	"encoding/json"
	"fmt"
)

// ReportFilename is the download name of the exported report.
const ReportFilename = "interview_report.json"

// report is the exported document layout.
type report struct {
	Questions   []Question         `json:"questions"`
	Answers     map[int]string     `json:"answers"`
	Evaluations map[int]Evaluation `json:"evaluations"`
	Summary     any                `json:"summary"`
}

// Export renders a snapshot as the downloadable report: a two-space indented
// JSON document with the top-level keys questions, answers, evaluations and
// summary. A missing summary is rendered as an empty object.
func Export(st State) ([]byte, error) {
	r := report{
		Questions:   st.Questions,
		Answers:     st.Answers,
		Evaluations: st.Evaluations,
		Summary:     struct{}{},
	}
	if r.Questions == nil {
		r.Questions = []Question{}
	}
	if r.Answers == nil {
		r.Answers = map[int]string{}
	}
	if r.Evaluations == nil {
		r.Evaluations = map[int]Evaluation{}
	}
	if st.OverallSummary != nil {
		r.Summary = st.OverallSummary
	}
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("interview: encode report: %w", err)
	}
	return out, nil
}
