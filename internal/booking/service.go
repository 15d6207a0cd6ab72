package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiva-1301/hospiico/internal/appointment"
	"github.com/shiva-1301/hospiico/internal/metrics"
	redisclient "github.com/shiva-1301/hospiico/internal/redis"
	"github.com/shiva-1301/hospiico/internal/schedule"
	"github.com/shiva-1301/hospiico/internal/session"
)

const (
	ActionSelectHospital = "select_hospital"
	ActionSelectDoctor   = "select_doctor"
	ActionSelectDate     = "select_date"
	ActionSelectTime     = "select_time"
	ActionConfirm        = "confirm_booking"
)

var (
	ErrUnknownAction     = errors.New("unknown action")
	ErrDoctorNotAtClinic = errors.New("doctor does not work at the selected hospital")
)

type Action struct {
	SessionID string
	Name      string
	Value     string
	UserID    string
	Patient   session.PatientDetails
}

// Summary is the human-readable booking recap.
type Summary struct {
	Hospital string
	Doctor   string
	Date     string
	Time     string
	Patient  string
}

type Result struct {
	SessionID string
	Step      session.Step
	Message   string

	Doctors            []appointment.Doctor // select_hospital
	Date               string               // select_date
	Slots              []string             // select_date
	AppointmentDetails *Summary             // select_time
	AppointmentID      string               // confirm_booking
	Details            *Summary             // confirm_booking
}

type Options struct {
	Location *time.Location
	Now      func() time.Time
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Service drives a session through the booking steps. Every action runs
// under the session's lock and saves with a revision check, so concurrent
// actions on one session cannot overwrite each other.
type Service struct {
	sessions session.Store
	repo     appointment.Repository
	bookings *appointment.Service
	locker   redisclient.Locker
	loc      *time.Location
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type handler func(ctx context.Context, sess *session.Session, a Action) (*Result, error)

func NewService(sessions session.Store, repo appointment.Repository, bookings *appointment.Service, locker redisclient.Locker, opts Options) *Service {
	s := &Service{
		sessions: sessions,
		repo:     repo,
		bookings: bookings,
		locker:   locker,
		loc:      opts.Location,
		now:      opts.Now,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func SessionLockName(id string) string {
	return "session:" + id
}

// Dispatch applies one step action. A rejected action leaves the stored
// session untouched.
func (s *Service) Dispatch(ctx context.Context, a Action) (*Result, error) {
	h, ok := s.handler(a.Name)
	if !ok {
		s.metrics.ObserveAction("unknown", "rejected")
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, a.Name)
	}

	a.SessionID = strings.TrimSpace(a.SessionID)
	if a.SessionID == "" {
		a.SessionID = uuid.NewString()
	}

	var res *Result
	err := s.withSession(ctx, a.SessionID, func(ctx context.Context, sess *session.Session) error {
		r, err := h(ctx, sess, a)
		if err != nil {
			return err
		}
		r.SessionID = sess.ID
		r.Step = sess.Step
		res = r
		return nil
	})

	s.metrics.ObserveAction(a.Name, outcome(err))
	if err != nil {
		s.logger.Info("booking action rejected",
			zap.String("action", a.Name),
			zap.String("session_id", a.SessionID),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

func (s *Service) handler(name string) (handler, bool) {
	switch name {
	case ActionSelectHospital:
		return s.selectHospital, true
	case ActionSelectDoctor:
		return s.selectDoctor, true
	case ActionSelectDate:
		return s.selectDate, true
	case ActionSelectTime:
		return s.selectTime, true
	case ActionConfirm:
		return s.confirm, true
	}
	return nil, false
}

// withSession loads (or starts) the session under its lock, runs fn and saves
// the result. Saving ignores caller cancellation: once a step was applied it
// is persisted.
func (s *Service) withSession(ctx context.Context, id string, fn func(ctx context.Context, sess *session.Session) error) error {
	run := func(ctx context.Context) error {
		sess, err := s.sessions.GetOrCreate(ctx, id)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if sess.Expired(s.now()) {
			return session.ErrSessionExpired
		}

		if err := fn(ctx, sess); err != nil {
			return err
		}

		if err := s.sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	}

	if s.locker == nil {
		return run(ctx)
	}
	return s.locker.WithLock(ctx, SessionLockName(id), run)
}

func (s *Service) selectHospital(ctx context.Context, sess *session.Session, a Action) (*Result, error) {
	id, err := uuid.Parse(strings.TrimSpace(a.Value))
	if err != nil {
		return nil, appointment.ErrClinicNotFound
	}
	clinic, err := s.repo.GetClinicByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doctors, err := s.repo.ListDoctorsByClinic(ctx, clinic.ID)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	if err := sess.SelectClinic(session.Choice{ID: clinic.ID, Name: clinic.Name}); err != nil {
		return nil, err
	}

	if spec := sess.Specialization(); spec != "" {
		matching := doctors[:0:0]
		for _, d := range doctors {
			if strings.EqualFold(d.Specialization, spec) {
				matching = append(matching, d)
			}
		}
		doctors = matching
	}

	return &Result{
		Message: "Great! Please select a doctor from " + clinic.Name,
		Doctors: doctors,
	}, nil
}

func (s *Service) selectDoctor(ctx context.Context, sess *session.Session, a Action) (*Result, error) {
	if sess.Clinic == nil {
		return nil, session.ErrNoClinicSelected
	}
	id, err := uuid.Parse(strings.TrimSpace(a.Value))
	if err != nil {
		return nil, appointment.ErrDoctorNotFound
	}
	doctor, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctor.ClinicID != sess.Clinic.ID {
		return nil, ErrDoctorNotAtClinic
	}

	if err := sess.SelectDoctor(session.Choice{ID: doctor.ID, Name: doctor.Name}); err != nil {
		return nil, err
	}

	return &Result{
		Message: fmt.Sprintf("When would you like to book an appointment with Dr. %s?", strings.TrimPrefix(doctor.Name, "Dr. ")),
	}, nil
}

func (s *Service) selectDate(ctx context.Context, sess *session.Session, a Action) (*Result, error) {
	date, err := schedule.ParseDate(strings.TrimSpace(a.Value), s.loc)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := schedule.CheckNotPast(date, now); err != nil {
		return nil, err
	}

	day := date.Format(schedule.DateLayout)
	if err := sess.SelectDate(day); err != nil {
		return nil, err
	}

	slots, err := s.openSlots(ctx, sess.Doctor.ID, date, now)
	if err != nil {
		return nil, err
	}

	return &Result{
		Message: "Please select a time slot:",
		Date:    day,
		Slots:   slots,
	}, nil
}

// openSlots lists the doctor's bookable times on date, as offered by select_date.
func (s *Service) openSlots(ctx context.Context, doctorID uuid.UUID, date, now time.Time) ([]string, error) {
	start := schedule.StartOfDay(date)
	taken, err := s.repo.BookedTimes(ctx, doctorID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}
	booked := make([]string, len(taken))
	for i, t := range taken {
		booked[i] = schedule.Label(t, s.loc)
	}
	return schedule.AvailableSlots(date, booked, now), nil
}

func (s *Service) selectTime(ctx context.Context, sess *session.Session, a Action) (*Result, error) {
	hhmm := strings.TrimSpace(a.Value)
	if err := schedule.ValidateTime(hhmm); err != nil {
		return nil, err
	}
	if err := sess.SelectTime(hhmm); err != nil {
		return nil, err
	}

	date, err := schedule.ParseDate(sess.Date, s.loc)
	if err != nil {
		return nil, err
	}
	slots, err := s.openSlots(ctx, sess.Doctor.ID, date, s.now())
	if err != nil {
		return nil, err
	}
	if !slices.Contains(slots, hhmm) {
		return nil, fmt.Errorf("%w: %s on %s", schedule.ErrSlotUnavailable, hhmm, sess.Date)
	}

	return &Result{
		Message:            "Please provide patient details to confirm the booking:",
		AppointmentDetails: summarize(sess, ""),
	}, nil
}

func (s *Service) confirm(ctx context.Context, sess *session.Session, a Action) (*Result, error) {
	if sess.Step == session.StepBookingConfirmed {
		return nil, fmt.Errorf("%w: session %s already confirmed appointment %s",
			appointment.ErrSlotTaken, sess.ID, sess.AppointmentID)
	}
	if err := sess.CheckConfirmable(); err != nil {
		return nil, err
	}

	at, err := schedule.At(sess.Date, sess.Time, s.loc)
	if err != nil {
		return nil, err
	}
	if at.Before(s.now()) {
		return nil, schedule.ErrPastDate
	}

	userID := strings.TrimSpace(a.UserID)
	if userID == "" {
		userID = strings.TrimSpace(a.Value)
	}
	var uid *string
	if userID != "" {
		uid = &userID
		sess.UserID = userID
	}

	p := a.Patient
	created, err := s.bookings.Book(ctx, appointment.Appointment{
		ClinicID:        sess.Clinic.ID,
		DoctorID:        sess.Doctor.ID,
		UserID:          uid,
		AppointmentTime: at,
		Patient: appointment.Patient{
			Name:   p.Name,
			Age:    p.Age,
			Gender: p.Gender,
			Phone:  p.Phone,
			Email:  p.Email,
		},
		Reason: p.Reason,
	})
	if err != nil {
		s.metrics.ObserveBooking(outcome(err))
		return nil, err
	}
	s.metrics.ObserveBooking("booked")

	if err := sess.Confirm(p, created.ID.String()); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("session_id", sess.ID),
		zap.String("doctor_id", created.DoctorID.String()),
		zap.Time("appointment_time", created.AppointmentTime))

	return &Result{
		Message:       "✅ Appointment booked successfully!",
		AppointmentID: created.ID.String(),
		Details:       summarize(sess, p.Name),
	}, nil
}

func summarize(sess *session.Session, patient string) *Summary {
	sum := &Summary{Date: sess.Date, Time: sess.Time, Patient: patient}
	if sess.Clinic != nil {
		sum.Hospital = sess.Clinic.Name
	}
	if sess.Doctor != nil {
		sum.Doctor = sess.Doctor.Name
	}
	return sum
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, appointment.ErrSlotTaken):
		return "conflict"
	case errors.Is(err, redisclient.ErrLockNotAcquired),
		errors.Is(err, session.ErrRevisionConflict),
		errors.Is(err, appointment.ErrSlotBeingBooked):
		return "busy"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "rejected"
	}
}
