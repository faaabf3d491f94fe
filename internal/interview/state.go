package interview

// Phase is the coarse interview lifecycle stage. It is derived from the
// session flags rather than stored.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

// State is an immutable snapshot of a [Session] together with its derived
// projections. Maps and slices are copies owned by the snapshot.
type State struct {
	SessionID string `json:"session_id"`
	Phase     Phase  `json:"phase"`

	// Version increases with every committed change.
	Version uint64 `json:"version"`

	Questions      []Question `json:"questions"`
	CurrentIndex   int        `json:"current_question_index"`
	TotalQuestions int        `json:"total_questions"`

	// ProgressPercent is 0 before the start, else (index+1)/total*100.
	ProgressPercent float64 `json:"progress_percent"`

	CurrentQuestion   *Question   `json:"current_question"`
	CurrentAnswer     string      `json:"current_answer"`
	CurrentEvaluation *Evaluation `json:"current_evaluation"`
	IsFirstQuestion   bool        `json:"is_first_question"`
	IsLastQuestion    bool        `json:"is_last_question"`

	// Transcript is the live transcript buffer.
	Transcript string `json:"transcript"`

	Answers        map[int]string     `json:"answers"`
	Evaluations    map[int]Evaluation `json:"evaluations"`
	OverallSummary *OverallSummary    `json:"overall_summary"`

	Started      bool `json:"interview_started"`
	Finished     bool `json:"interview_finished"`
	IsRecording  bool `json:"is_recording"`
	IsEvaluating bool `json:"is_evaluating"`
	IsAISpeaking bool `json:"is_ai_speaking"`
}

// snapshotLocked builds a State. The caller must hold s.mu.
func (s *Session) snapshotLocked() State {
	st := State{
		SessionID:       s.id,
		Phase:           s.phaseLocked(),
		Version:         s.version,
		Questions:       make([]Question, len(s.questions)),
		CurrentIndex:    s.index,
		TotalQuestions:  len(s.questions),
		Transcript:      s.transcript,
		Answers:         make(map[int]string, len(s.answers)),
		Evaluations:     make(map[int]Evaluation, len(s.evaluations)),
		Started:         s.started,
		Finished:        s.finished,
		IsRecording:     s.recording,
		IsEvaluating:    s.evaluating,
		IsAISpeaking:    s.aiSpeaking,
		IsFirstQuestion: s.index == 0,
		IsLastQuestion:  s.index == len(s.questions)-1,
	}
	copy(st.Questions, s.questions)
	for k, v := range s.answers {
		st.Answers[k] = v
	}
	for k, v := range s.evaluations {
		st.Evaluations[k] = v
	}
	if s.summary != nil {
		sum := *s.summary
		st.OverallSummary = &sum
	}
	if s.started && s.index >= 0 {
		st.ProgressPercent = float64(s.index+1) / float64(len(s.questions)) * 100
	}
	if q, ok := s.currentQuestionLocked(); ok {
		st.CurrentQuestion = &q
		st.CurrentAnswer = s.answers[q.ID]
		if ev, ok := s.evaluations[q.ID]; ok {
			st.CurrentEvaluation = &ev
		}
	}
	return st
}

func (s *Session) phaseLocked() Phase {
	switch {
	case s.finished:
		return PhaseFinished
	case s.started:
		return PhaseInProgress
	}
	return PhaseNotStarted
}

func (s *Session) currentQuestionLocked() (Question, bool) {
	if !s.started || s.index < 0 || s.index >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[s.index], true
}
