package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClinicNotFound = errors.New("hospital not found")
	ErrDoctorNotFound = errors.New("doctor not found")
	// ErrSlotTaken means another BOOKED appointment already holds the doctor/time pair.
	ErrSlotTaken = errors.New("time slot already booked")
)

// Repository contains all catalog and booking storage needed by the chat and booking flows.
type Repository interface {
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	ListClinics(ctx context.Context) ([]Clinic, error)
	FindClinicsByCity(ctx context.Context, city string) ([]Clinic, error)
	FindClinicsBySpecialization(ctx context.Context, specializations []string) ([]Clinic, error)
	DistinctCities(ctx context.Context) ([]string, error)

	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctorsByClinic(ctx context.Context, clinicID uuid.UUID) ([]Doctor, error)

	// BookedTimes returns start times of BOOKED appointments in [from, to).
	BookedTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
	ExistsBooked(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
	// CreateBooked inserts a BOOKED appointment or fails with ErrSlotTaken.
	CreateBooked(ctx context.Context, appt Appointment) (*Appointment, error)

	// Seeding
	SaveClinic(ctx context.Context, c Clinic) error
	SaveDoctor(ctx context.Context, d Doctor) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
