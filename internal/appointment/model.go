package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusCancelled Status = "CANCELLED"
)

type Clinic struct {
	ID              uuid.UUID
	Name            string
	Address         string
	City            string
	State           string
	Latitude        *float64
	Longitude       *float64
	Rating          float64
	ImageURL        string
	Phone           string
	Specializations []string
	CreatedAt       time.Time
}

// HasCoordinates reports whether both latitude and longitude are known.
func (c Clinic) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Offers reports whether the clinic lists the specialization, ignoring case.
func (c Clinic) Offers(specialization string) bool {
	for _, s := range c.Specializations {
		if strings.EqualFold(s, specialization) {
			return true
		}
	}
	return false
}

type Doctor struct {
	ID             uuid.UUID
	ClinicID       uuid.UUID
	Name           string
	Specialization string
	Qualifications string
	Experience     string
	ImageURL       string
	CreatedAt      time.Time
}

type Patient struct {
	Name   string
	Age    *int
	Gender string
	Phone  string
	Email  string
}

type Appointment struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	DoctorID        uuid.UUID
	UserID          *string
	AppointmentTime time.Time
	Status          Status
	Patient         Patient
	Reason          string
	CreatedAt       time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
