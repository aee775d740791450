package domain

import (
	"math"

	"github.com/teleatencion/platform/internal/shared/errors"
)

// BMICategory classifies body mass index
type BMICategory string

const (
	BMIDelgadez  BMICategory = "Delgadez"
	BMINormal    BMICategory = "Normal"
	BMISobrepeso BMICategory = "Sobrepeso"
	BMIObesidad  BMICategory = "Obesidad I-II"
)

// AdherenceLevel classifies treatment adherence
type AdherenceLevel string

const (
	AdherenceAlta  AdherenceLevel = "Alta"
	AdherenceMedia AdherenceLevel = "Media"
	AdherenceBaja  AdherenceLevel = "Baja"
)

// BPCategory classifies a blood-pressure reading
type BPCategory string

const (
	BPNormal   BPCategory = "Normal"
	BPElevada  BPCategory = "Elevada"
	BPEstadio1 BPCategory = "Hipertensión Estadio 1"
	BPEstadio2 BPCategory = "Hipertensión Estadio 2"
)

// GlucoseCategory classifies a capillary glucose reading
type GlucoseCategory string

const (
	GlucoseHipoglucemia GlucoseCategory = "Hipoglucemia"
	GlucoseNormal       GlucoseCategory = "Normal"
	GlucoseElevada      GlucoseCategory = "Elevada"
	GlucoseAlta         GlucoseCategory = "Alta (posprandial)"
)

// RiskLevel is the nurse-assessed overall risk
type RiskLevel string

const (
	RiskBajo  RiskLevel = "bajo"
	RiskMedio RiskLevel = "medio"
	RiskAlto  RiskLevel = "alto"
)

// ControlStatus records whether the chronic condition is under control
type ControlStatus string

const (
	ControlStatusUnknown ControlStatus = ""
	ControlControlado    ControlStatus = "controlado"
	ControlNoControlado  ControlStatus = "no_controlado"
)

// Proficiency is a single tri-state per measurement device, replacing the
// paired knows/does-not-know flags that had to be kept in sync manually.
type Proficiency string

const (
	ProficiencyUnknown     Proficiency = ""
	ProficiencyKnows       Proficiency = "conoce"
	ProficiencyDoesNotKnow Proficiency = "no_conoce"
)

// Answer is one yes/no questionnaire response; empty means unanswered
type Answer string

const (
	AnswerUnset Answer = ""
	AnswerYes   Answer = "si"
	AnswerNo    Answer = "no"
)

// MoriskyTest is the 4-question treatment-adherence screening. Every "yes"
// indicates an adherence failure.
type MoriskyTest struct {
	ForgetsDose      Answer `json:"forgets_dose"`
	CarelessWithTime Answer `json:"careless_with_time"`
	StopsWhenBetter  Answer `json:"stops_when_better"`
	StopsWhenWorse   Answer `json:"stops_when_worse"`
}

func (m MoriskyTest) answers() []Answer {
	return []Answer{m.ForgetsDose, m.CarelessWithTime, m.StopsWhenBetter, m.StopsWhenWorse}
}

// FullyAnswered reports whether all four questions were answered
func (m MoriskyTest) FullyAnswered() bool {
	for _, a := range m.answers() {
		if a == AnswerUnset {
			return false
		}
	}
	return true
}

// YesCount counts adherence failures
func (m MoriskyTest) YesCount() int {
	n := 0
	for _, a := range m.answers() {
		if a == AnswerYes {
			n++
		}
	}
	return n
}

// PathologyTag is an additional pathology observed during the assessment
type PathologyTag string

// NursingAssessment is the structured assessment a nurse attaches to an
// attention outcome. Derived classifications are computed, never stored as
// independent inputs, except for the explicitly allowed manual fallbacks.
type NursingAssessment struct {
	// Device proficiency, one tri-state per device
	TensiometerSkill Proficiency `json:"tensiometer_skill"`
	GlucometerSkill  Proficiency `json:"glucometer_skill"`
	ThermometerSkill Proficiency `json:"thermometer_skill"`
	OximeterSkill    Proficiency `json:"oximeter_skill"`

	// Anthropometrics; zero means not measured
	WeightKg float64 `json:"weight_kg,omitempty"`
	HeightM  float64 `json:"height_m,omitempty"`
	// Manual BMI category, accepted only when weight and height are absent
	BMIManual BMICategory `json:"bmi_manual,omitempty"`

	// Adherence: questionnaire and manual selection are mutually exclusive
	Morisky         *MoriskyTest   `json:"morisky,omitempty"`
	AdherenceManual AdherenceLevel `json:"adherence_manual,omitempty"`

	RiskLevel RiskLevel     `json:"risk_level,omitempty"`
	Control   ControlStatus `json:"control_status,omitempty"`

	// Latest vitals; zero means not measured
	SystolicMmHg  int `json:"systolic_mmhg,omitempty"`
	DiastolicMmHg int `json:"diastolic_mmhg,omitempty"`
	GlucoseMgDl   int `json:"glucose_mgdl,omitempty"`

	Pathologies      []PathologyTag `json:"pathologies,omitempty"`
	NoOtherPathology bool           `json:"no_other_pathology,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// NursingSummary holds the derived classifications of an assessment
type NursingSummary struct {
	BMI         float64     `json:"bmi,omitempty"`
	BMICategory BMICategory `json:"bmi_category,omitempty"`

	Adherence AdherenceLevel `json:"adherence,omitempty"`

	BloodPressure BPCategory `json:"blood_pressure,omitempty"`
	// Display-only message when the reading is inconsistent; does not block
	// recording the outcome
	BloodPressureNote string `json:"blood_pressure_note,omitempty"`

	Glucose GlucoseCategory `json:"glucose,omitempty"`
}

// ComputeBMI derives body mass index from weight (kg) and height (m),
// rounded to one decimal
func ComputeBMI(weightKg, heightM float64) (float64, error) {
	if weightKg <= 0 || heightM <= 0 {
		return 0, errors.Validation("weight and height must be positive", map[string]string{
			"weight_kg": "required", "height_m": "required",
		})
	}
	bmi := weightKg / (heightM * heightM)
	return math.Round(bmi*10) / 10, nil
}

// ClassifyBMI maps a BMI value to its category
func ClassifyBMI(bmi float64) BMICategory {
	switch {
	case bmi < 18.5:
		return BMIDelgadez
	case bmi < 25:
		return BMINormal
	case bmi < 30:
		return BMISobrepeso
	default:
		return BMIObesidad
	}
}

// ClassifyAdherence maps a Morisky yes-count to an adherence level
func ClassifyAdherence(yesCount int) AdherenceLevel {
	switch {
	case yesCount == 0:
		return AdherenceAlta
	case yesCount <= 2:
		return AdherenceMedia
	default:
		return AdherenceBaja
	}
}

// ClassifyBloodPressure maps a reading to its category. A diastolic at or
// above the systolic is physiologically inconsistent and yields an error the
// caller surfaces as a display-only message.
func ClassifyBloodPressure(systolic, diastolic int) (BPCategory, error) {
	if diastolic >= systolic {
		return "", errors.Validation("diastolic must be lower than systolic", map[string]string{
			"systolic":  "must exceed diastolic",
			"diastolic": "must be lower than systolic",
		})
	}
	switch {
	case systolic >= 140 || diastolic >= 90:
		return BPEstadio2, nil
	case systolic >= 130 || diastolic >= 80:
		return BPEstadio1, nil
	case systolic >= 120:
		return BPElevada, nil
	default:
		return BPNormal, nil
	}
}

// ClassifyGlucose maps a glucose reading (mg/dL) to its category
func ClassifyGlucose(mgdl int) GlucoseCategory {
	switch {
	case mgdl < 80:
		return GlucoseHipoglucemia
	case mgdl <= 130:
		return GlucoseNormal
	case mgdl <= 179:
		return GlucoseElevada
	default:
		return GlucoseAlta
	}
}

// Validate checks the assessment's exclusivity rules
func (n *NursingAssessment) Validate() error {
	hasAnthropometrics := n.WeightKg > 0 || n.HeightM > 0
	if n.BMIManual != "" && hasAnthropometrics {
		return errors.Validation("manual BMI category is allowed only when weight and height are absent", map[string]string{
			"bmi_manual": "remove measurements or the manual category",
		})
	}
	if hasAnthropometrics && (n.WeightKg <= 0 || n.HeightM <= 0) {
		return errors.Validation("weight and height must both be provided", map[string]string{
			"weight_kg": "required with height", "height_m": "required with weight",
		})
	}

	questionnaireComplete := n.Morisky != nil && n.Morisky.FullyAnswered()
	if n.AdherenceManual != "" && questionnaireComplete {
		return errors.Validation("manual adherence is allowed only when the questionnaire is incomplete", map[string]string{
			"adherence_manual": "mutually exclusive with a completed questionnaire",
		})
	}

	if n.NoOtherPathology && len(n.Pathologies) > 0 {
		return errors.Validation("no-other-pathology excludes all other pathology tags", map[string]string{
			"pathologies": "must be empty when no_other_pathology is set",
		})
	}

	// One vital implies the other
	if (n.SystolicMmHg > 0) != (n.DiastolicMmHg > 0) {
		return errors.Validation("blood pressure requires both systolic and diastolic", map[string]string{
			"systolic_mmhg": "required with diastolic", "diastolic_mmhg": "required with systolic",
		})
	}

	return nil
}

// Summarize derives the classification summary. Validate must have passed.
func (n *NursingAssessment) Summarize() NursingSummary {
	var s NursingSummary

	if n.WeightKg > 0 && n.HeightM > 0 {
		if bmi, err := ComputeBMI(n.WeightKg, n.HeightM); err == nil {
			s.BMI = bmi
			s.BMICategory = ClassifyBMI(bmi)
		}
	} else if n.BMIManual != "" {
		s.BMICategory = n.BMIManual
	}

	if n.Morisky != nil && n.Morisky.FullyAnswered() {
		s.Adherence = ClassifyAdherence(n.Morisky.YesCount())
	} else if n.AdherenceManual != "" {
		s.Adherence = n.AdherenceManual
	}

	if n.SystolicMmHg > 0 && n.DiastolicMmHg > 0 {
		cat, err := ClassifyBloodPressure(n.SystolicMmHg, n.DiastolicMmHg)
		if err != nil {
			s.BloodPressureNote = "diastolic must be lower than systolic"
		} else {
			s.BloodPressure = cat
		}
	}

	if n.GlucoseMgDl > 0 {
		s.Glucose = ClassifyGlucose(n.GlucoseMgDl)
	}

	return s
}
