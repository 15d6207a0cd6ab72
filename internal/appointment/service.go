package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/shiva-1301/hospiico/internal/redis"
)

const (
	EventAppointmentBooked = "APPOINTMENT_BOOKED"
	EventBookingConflict   = "BOOKING_CONFLICT"
)

var (
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

// Service commits bookings. The slot lock narrows the race window; the
// repository's insert-if-absent is what actually guarantees one BOOKED row.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	logger *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		logger: logger,
	}
}

// SlotLockName is the lock name for one doctor/start-time pair.
func SlotLockName(doctorID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("slot:%s:%d", doctorID, at.Unix())
}

// Book stores a BOOKED appointment for appt.DoctorID at appt.AppointmentTime.
func (s *Service) Book(ctx context.Context, appt Appointment) (*Appointment, error) {
	var created *Appointment

	commit := func(lockCtx context.Context) error {
		// Inside the critical section re-check for a booked appointment at this slot
		exists, err := s.repo.ExistsBooked(lockCtx, appt.DoctorID, appt.AppointmentTime)
		if err != nil {
			return fmt.Errorf("check booked slot: %w", err)
		}
		if exists {
			return ErrSlotTaken
		}

		a, err := s.repo.CreateBooked(lockCtx, appt)
		if err != nil {
			return err
		}
		created = a
		return nil
	}

	var err error
	if s.locker == nil {
		err = commit(ctx)
	} else {
		err = s.locker.WithLock(ctx, SlotLockName(appt.DoctorID, appt.AppointmentTime), commit)
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			s.logEvent(ctx, nil, EventBookingConflict, map[string]any{
				"doctor_id":        appt.DoctorID.String(),
				"appointment_time": appt.AppointmentTime,
			})
			return nil, ErrSlotTaken
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			return nil, ErrSlotBeingBooked
		}
		return nil, fmt.Errorf("book appointment: %w", err)
	}

	id := created.ID
	s.logEvent(ctx, &id, EventAppointmentBooked, map[string]any{
		"clinic_id":        created.ClinicID.String(),
		"doctor_id":        created.DoctorID.String(),
		"appointment_time": created.AppointmentTime,
	})

	return created, nil
}

// logEvent is best effort; a failed event insert never fails the booking.
func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("insert event log", zap.String("event_type", eventType), zap.Error(err))
	}
}
