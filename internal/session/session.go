package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Step is a position in the booking conversation. Steps are ordered and a
// session never moves backwards.
type Step int

const (
	StepSymptomClassification Step = iota
	StepSymptomExplanation
	StepHospitalSelection
	StepDoctorSelection
	StepDateSelection
	StepTimeSelection
	StepPatientDetails
	StepBookingConfirmed
)

var stepNames = [...]string{
	StepSymptomClassification: "symptom_classification",
	StepSymptomExplanation:    "symptom_explanation",
	StepHospitalSelection:     "hospital_selection",
	StepDoctorSelection:       "doctor_selection",
	StepDateSelection:         "date_selection",
	StepTimeSelection:         "time_selection",
	StepPatientDetails:        "patient_details",
	StepBookingConfirmed:      "booking_confirmed",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", name)
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	parsed, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var (
	ErrStepOutOfOrder    = errors.New("action is not allowed at the current step")
	ErrNoSymptom         = errors.New("no symptom recorded for this session")
	ErrNoClinicSelected  = errors.New("please select a hospital first")
	ErrNoDoctorSelected  = errors.New("please select a doctor first")
	ErrNoDateSelected    = errors.New("please select a date first")
	ErrIncompleteBooking = errors.New("incomplete booking information")
	ErrSessionExpired    = errors.New("session has expired, please start again")
	ErrRevisionConflict  = errors.New("session was modified concurrently")
	ErrInvalidSession    = errors.New("invalid session state")
)

type SymptomContext struct {
	Symptom         string   `json:"symptom"`
	Specialization  string   `json:"specialization"`
	Specializations []string `json:"specializations,omitempty"`
}

// Choice is a selected catalog entry, kept with its display name.
type Choice struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type PatientDetails struct {
	Name   string `json:"name"`
	Age    *int   `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Session is one booking conversation. Fields beyond Step are only set once
// the step that introduces them has been reached; use the transition methods
// to change them.
type Session struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId,omitempty"`
	Step          Step            `json:"step"`
	Symptom       *SymptomContext `json:"symptom,omitempty"`
	Clinic        *Choice         `json:"clinic,omitempty"`
	Doctor        *Choice         `json:"doctor,omitempty"`
	Date          string          `json:"date,omitempty"`
	Time          string          `json:"time,omitempty"`
	Patient       *PatientDetails `json:"patient,omitempty"`
	AppointmentID string          `json:"appointmentId,omitempty"`
	Revision      int64           `json:"revision"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

// New returns an unsaved session at the first step.
func New(id string, now time.Time, ttl time.Duration) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:        id,
		Step:      StepSymptomClassification,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HasSymptom reports whether a symptom was recorded.
func (s *Session) HasSymptom() bool {
	return s.Symptom != nil && s.Symptom.Symptom != ""
}

// Specialization is the primary specialization, or "" when none was inferred.
func (s *Session) Specialization() string {
	if s.Symptom == nil {
		return ""
	}
	return s.Symptom.Specialization
}

func (s *Session) advanceTo(target Step) error {
	if s.Step > target {
		return fmt.Errorf("%w: session is at %s, action targets %s", ErrStepOutOfOrder, s.Step, target)
	}
	return nil
}

// ExplainSymptom records the interpreted symptom on a fresh session.
func (s *Session) ExplainSymptom(sc SymptomContext) error {
	if s.Step != StepSymptomClassification {
		return fmt.Errorf("%w: symptom already recorded", ErrStepOutOfOrder)
	}
	if sc.Symptom == "" {
		return ErrNoSymptom
	}
	s.Symptom = &sc
	s.Step = StepSymptomExplanation
	return nil
}

// PresentHospitals moves a session with a recorded symptom to hospital selection.
func (s *Session) PresentHospitals() error {
	if err := s.advanceTo(StepHospitalSelection); err != nil {
		return err
	}
	if !s.HasSymptom() {
		return ErrNoSymptom
	}
	s.Step = StepHospitalSelection
	return nil
}

func (s *Session) SelectClinic(c Choice) error {
	if err := s.advanceTo(StepDoctorSelection); err != nil {
		return err
	}
	s.Clinic = &c
	s.Doctor = nil
	s.Date, s.Time = "", ""
	s.Step = StepDoctorSelection
	return nil
}

func (s *Session) SelectDoctor(d Choice) error {
	if err := s.advanceTo(StepDateSelection); err != nil {
		return err
	}
	if s.Clinic == nil {
		return ErrNoClinicSelected
	}
	s.Doctor = &d
	s.Date, s.Time = "", ""
	s.Step = StepDateSelection
	return nil
}

// SelectDate stores a YYYY-MM-DD date; callers validate the calendar rules.
func (s *Session) SelectDate(date string) error {
	if err := s.advanceTo(StepTimeSelection); err != nil {
		return err
	}
	if s.Doctor == nil {
		return ErrNoDoctorSelected
	}
	s.Date = date
	s.Time = ""
	s.Step = StepTimeSelection
	return nil
}

// SelectTime stores an HH:MM time verbatim.
func (s *Session) SelectTime(hhmm string) error {
	if err := s.advanceTo(StepPatientDetails); err != nil {
		return err
	}
	if s.Date == "" {
		return ErrNoDateSelected
	}
	s.Time = hhmm
	s.Step = StepPatientDetails
	return nil
}

// CheckConfirmable reports whether Confirm could succeed, without changing anything.
func (s *Session) CheckConfirmable() error {
	if err := s.advanceTo(StepBookingConfirmed); err != nil {
		return err
	}
	if s.Clinic == nil || s.Doctor == nil || s.Date == "" || s.Time == "" {
		return ErrIncompleteBooking
	}
	return nil
}

// Confirm finalizes the session after the appointment has been stored.
func (s *Session) Confirm(p PatientDetails, appointmentID string) error {
	if err := s.CheckConfirmable(); err != nil {
		return err
	}
	s.Patient = &p
	s.AppointmentID = appointmentID
	s.Step = StepBookingConfirmed
	return nil
}

// Validate checks that exactly the fields legal for the current step are set.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidSession)
	}
	if s.Step < StepSymptomClassification || s.Step > StepBookingConfirmed {
		return fmt.Errorf("%w: unknown step %d", ErrInvalidSession, int(s.Step))
	}

	check := func(name string, present bool, from Step) error {
		want := s.Step >= from
		if present != want {
			if present {
				return fmt.Errorf("%w: %s set at %s", ErrInvalidSession, name, s.Step)
			}
			return fmt.Errorf("%w: %s missing at %s", ErrInvalidSession, name, s.Step)
		}
		return nil
	}

	if (s.Step == StepSymptomExplanation || s.Step == StepHospitalSelection) && !s.HasSymptom() {
		return fmt.Errorf("%w: symptom missing at %s", ErrInvalidSession, s.Step)
	}
	if s.Step == StepSymptomClassification && s.Symptom != nil {
		return fmt.Errorf("%w: symptom set at %s", ErrInvalidSession, s.Step)
	}
	if err := check("clinic", s.Clinic != nil, StepDoctorSelection); err != nil {
		return err
	}
	if err := check("doctor", s.Doctor != nil, StepDateSelection); err != nil {
		return err
	}
	if err := check("date", s.Date != "", StepTimeSelection); err != nil {
		return err
	}
	if err := check("time", s.Time != "", StepPatientDetails); err != nil {
		return err
	}
	if err := check("patient", s.Patient != nil, StepBookingConfirmed); err != nil {
		return err
	}
	return check("appointment", s.AppointmentID != "", StepBookingConfirmed)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.Symptom != nil {
		sc := *s.Symptom
		sc.Specializations = append([]string(nil), s.Symptom.Specializations...)
		c.Symptom = &sc
	}
	if s.Clinic != nil {
		cl := *s.Clinic
		c.Clinic = &cl
	}
	if s.Doctor != nil {
		d := *s.Doctor
		c.Doctor = &d
	}
	if s.Patient != nil {
		p := *s.Patient
		if s.Patient.Age != nil {
			age := *s.Patient.Age
			p.Age = &age
		}
		c.Patient = &p
	}
	return &c
}
