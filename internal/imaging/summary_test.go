package imaging

import (
	"testing"
)

func evaluatedImage(at string, verdict Verdict, note string) DiagnosticImage {
	return DiagnosticImage{
		State:          StateEvaluated,
		Verdict:        verdict,
		EvaluationNote: note,
		EvaluatedAt:    at,
	}
}

func TestSummarize(t *testing.T) {
	t.Run("empty set", func(t *testing.T) {
		s := Summarize("12345678", nil)
		if s.TotalImages != 0 || s.HasRejected || s.LastVerdict != "" {
			t.Errorf("unexpected summary: %+v", s)
		}
		if !s.CanEvaluate() {
			t.Error("empty set should allow evaluation")
		}
	})

	t.Run("most recent evaluation wins", func(t *testing.T) {
		images := []DiagnosticImage{
			evaluatedImage("2026-02-10T08:00:00Z", VerdictNormal, "control anual"),
			evaluatedImage("2026-02-14T20:30:00Z", VerdictAbnormal, "microaneurismas"),
			evaluatedImage("2026-02-12T11:00:00Z", VerdictInconclusive, "artefactos"),
			{State: StateUnevaluated},
		}

		s := Summarize("12345678", images)
		if s.TotalImages != 4 {
			t.Errorf("TotalImages = %d, want 4", s.TotalImages)
		}
		if s.LastVerdict != VerdictAbnormal {
			t.Errorf("LastVerdict = %s, want %s", s.LastVerdict, VerdictAbnormal)
		}
		if s.LastNote != "microaneurismas" {
			t.Errorf("LastNote = %s", s.LastNote)
		}
	})

	t.Run("rejected image blocks evaluation", func(t *testing.T) {
		images := []DiagnosticImage{
			evaluatedImage("2026-02-10T08:00:00Z", VerdictNormal, ""),
			{State: StateRejected, RejectionNote: "imagen borrosa"},
		}

		s := Summarize("12345678", images)
		if !s.HasRejected {
			t.Error("HasRejected = false, want true")
		}
		if s.CanEvaluate() {
			t.Error("CanEvaluate should be false while a rejection is pending")
		}
		// The last evaluated verdict still shows even with a rejection present
		if s.LastVerdict != VerdictNormal {
			t.Errorf("LastVerdict = %s, want %s", s.LastVerdict, VerdictNormal)
		}
	})
}
