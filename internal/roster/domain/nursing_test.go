package domain

import (
	"testing"

	"github.com/teleatencion/platform/internal/shared/errors"
)

// TestComputeBMI tests BMI derivation and categories
func TestComputeBMI(t *testing.T) {
	bmi, err := ComputeBMI(70, 1.65)
	if err != nil {
		t.Fatalf("ComputeBMI: %v", err)
	}
	if bmi != 25.7 {
		t.Errorf("ComputeBMI(70, 1.65) = %.1f, want 25.7", bmi)
	}
	if got := ClassifyBMI(bmi); got != BMISobrepeso {
		t.Errorf("ClassifyBMI(%.1f) = %s, want %s", bmi, got, BMISobrepeso)
	}

	for _, bad := range []struct{ w, h float64 }{{0, 1.65}, {70, 0}, {-70, 1.65}} {
		if _, err := ComputeBMI(bad.w, bad.h); err == nil {
			t.Errorf("ComputeBMI(%v, %v): expected error", bad.w, bad.h)
		}
	}
}

// TestClassifyBMI tests the category thresholds
func TestClassifyBMI(t *testing.T) {
	tests := []struct {
		bmi  float64
		want BMICategory
	}{
		{16.0, BMIDelgadez},
		{18.4, BMIDelgadez},
		{18.5, BMINormal},
		{24.9, BMINormal},
		{25.0, BMISobrepeso},
		{29.9, BMISobrepeso},
		{30.0, BMIObesidad},
		{41.5, BMIObesidad},
	}

	for _, tt := range tests {
		if got := ClassifyBMI(tt.bmi); got != tt.want {
			t.Errorf("ClassifyBMI(%.1f) = %s, want %s", tt.bmi, got, tt.want)
		}
	}
}

// TestClassifyAdherence tests the Morisky yes-count mapping
func TestClassifyAdherence(t *testing.T) {
	tests := []struct {
		yes  int
		want AdherenceLevel
	}{
		{0, AdherenceAlta},
		{1, AdherenceMedia},
		{2, AdherenceMedia},
		{3, AdherenceBaja},
		{4, AdherenceBaja},
	}

	for _, tt := range tests {
		if got := ClassifyAdherence(tt.yes); got != tt.want {
			t.Errorf("ClassifyAdherence(%d) = %s, want %s", tt.yes, got, tt.want)
		}
	}
}

// TestMoriskyTest tests questionnaire completeness and counting
func TestMoriskyTest(t *testing.T) {
	partial := MoriskyTest{ForgetsDose: AnswerYes, CarelessWithTime: AnswerNo}
	if partial.FullyAnswered() {
		t.Error("two unanswered questions must not count as complete")
	}

	full := MoriskyTest{
		ForgetsDose:      AnswerYes,
		CarelessWithTime: AnswerNo,
		StopsWhenBetter:  AnswerYes,
		StopsWhenWorse:   AnswerNo,
	}
	if !full.FullyAnswered() {
		t.Error("expected fully answered questionnaire")
	}
	if full.YesCount() != 2 {
		t.Errorf("YesCount = %d, want 2", full.YesCount())
	}
}

// TestClassifyBloodPressure tests BP categories and the consistency check
func TestClassifyBloodPressure(t *testing.T) {
	tests := []struct {
		s, d    int
		want    BPCategory
		wantErr bool
	}{
		{150, 95, BPEstadio2, false},
		{142, 70, BPEstadio2, false},
		{118, 92, BPEstadio2, false}, // diastolic alone can drive the stage
		{135, 82, BPEstadio1, false},
		{128, 84, BPEstadio1, false},
		{125, 75, BPElevada, false},
		{120, 79, BPElevada, false},
		{118, 75, BPNormal, false},
		{118, 120, "", true},
		{110, 110, "", true},
	}

	for _, tt := range tests {
		got, err := ClassifyBloodPressure(tt.s, tt.d)
		if tt.wantErr {
			if !errors.IsValidation(err) {
				t.Errorf("ClassifyBloodPressure(%d, %d): expected validation error, got %v", tt.s, tt.d, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ClassifyBloodPressure(%d, %d): %v", tt.s, tt.d, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ClassifyBloodPressure(%d, %d) = %s, want %s", tt.s, tt.d, got, tt.want)
		}
	}
}

// TestClassifyGlucose tests glucose categories
func TestClassifyGlucose(t *testing.T) {
	tests := []struct {
		mgdl int
		want GlucoseCategory
	}{
		{75, GlucoseHipoglucemia},
		{79, GlucoseHipoglucemia},
		{80, GlucoseNormal},
		{100, GlucoseNormal},
		{130, GlucoseNormal},
		{131, GlucoseElevada},
		{150, GlucoseElevada},
		{179, GlucoseElevada},
		{180, GlucoseAlta},
		{200, GlucoseAlta},
	}

	for _, tt := range tests {
		if got := ClassifyGlucose(tt.mgdl); got != tt.want {
			t.Errorf("ClassifyGlucose(%d) = %s, want %s", tt.mgdl, got, tt.want)
		}
	}
}

// TestNursingAssessmentValidate tests the exclusivity rules
func TestNursingAssessmentValidate(t *testing.T) {
	fullMorisky := &MoriskyTest{
		ForgetsDose: AnswerNo, CarelessWithTime: AnswerNo,
		StopsWhenBetter: AnswerNo, StopsWhenWorse: AnswerNo,
	}

	tests := []struct {
		name    string
		n       NursingAssessment
		wantErr bool
	}{
		{"empty assessment", NursingAssessment{}, false},
		{"manual BMI without measurements", NursingAssessment{BMIManual: BMINormal}, false},
		{"manual BMI with measurements", NursingAssessment{
			BMIManual: BMINormal, WeightKg: 70, HeightM: 1.65,
		}, true},
		{"weight without height", NursingAssessment{WeightKg: 70}, true},
		{"manual adherence with incomplete questionnaire", NursingAssessment{
			Morisky: &MoriskyTest{ForgetsDose: AnswerYes}, AdherenceManual: AdherenceMedia,
		}, false},
		{"manual adherence with completed questionnaire", NursingAssessment{
			Morisky: fullMorisky, AdherenceManual: AdherenceAlta,
		}, true},
		{"no-pathology flag with tags", NursingAssessment{
			NoOtherPathology: true, Pathologies: []PathologyTag{"artritis"},
		}, true},
		{"no-pathology flag alone", NursingAssessment{NoOtherPathology: true}, false},
		{"systolic without diastolic", NursingAssessment{SystolicMmHg: 120}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.n.Validate()
			if tt.wantErr && !errors.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestNursingSummarize tests derivation, including the manual fallbacks
func TestNursingSummarize(t *testing.T) {
	t.Run("measured values win", func(t *testing.T) {
		n := NursingAssessment{
			WeightKg: 70, HeightM: 1.65,
			Morisky: &MoriskyTest{
				ForgetsDose: AnswerYes, CarelessWithTime: AnswerYes,
				StopsWhenBetter: AnswerNo, StopsWhenWorse: AnswerNo,
			},
			SystolicMmHg: 150, DiastolicMmHg: 95,
			GlucoseMgDl: 150,
		}

		s := n.Summarize()
		if s.BMI != 25.7 || s.BMICategory != BMISobrepeso {
			t.Errorf("BMI = %.1f %s, want 25.7 Sobrepeso", s.BMI, s.BMICategory)
		}
		if s.Adherence != AdherenceMedia {
			t.Errorf("Adherence = %s, want Media", s.Adherence)
		}
		if s.BloodPressure != BPEstadio2 {
			t.Errorf("BloodPressure = %s, want Estadio 2", s.BloodPressure)
		}
		if s.Glucose != GlucoseElevada {
			t.Errorf("Glucose = %s, want Elevada", s.Glucose)
		}
	})

	t.Run("manual fallbacks apply when measurements absent", func(t *testing.T) {
		n := NursingAssessment{
			BMIManual:       BMIDelgadez,
			AdherenceManual: AdherenceBaja,
		}

		s := n.Summarize()
		if s.BMICategory != BMIDelgadez || s.BMI != 0 {
			t.Errorf("expected manual BMI category, got %.1f %s", s.BMI, s.BMICategory)
		}
		if s.Adherence != AdherenceBaja {
			t.Errorf("expected manual adherence, got %s", s.Adherence)
		}
	})

	t.Run("inconsistent reading is display-only", func(t *testing.T) {
		n := NursingAssessment{SystolicMmHg: 118, DiastolicMmHg: 120}

		s := n.Summarize()
		if s.BloodPressure != "" {
			t.Errorf("expected no BP category, got %s", s.BloodPressure)
		}
		if s.BloodPressureNote == "" {
			t.Error("expected a display-only note on the inconsistent reading")
		}
	})
}
