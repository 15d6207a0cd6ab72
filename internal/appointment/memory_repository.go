package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps the catalog and appointments in process memory.
// It is used when no Postgres DSN is configured and in tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	clinics      map[uuid.UUID]Clinic
	clinicOrder  []uuid.UUID
	doctors      map[uuid.UUID]Doctor
	appointments []Appointment
	booked       map[slotKey]uuid.UUID
	events       []EventLog
	nextEventID  int64
	now          func() time.Time
}

type slotKey struct {
	doctorID uuid.UUID
	at       int64
}

func keyFor(doctorID uuid.UUID, at time.Time) slotKey {
	return slotKey{doctorID: doctorID, at: at.UnixNano()}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clinics: make(map[uuid.UUID]Clinic),
		doctors: make(map[uuid.UUID]Doctor),
		booked:  make(map[slotKey]uuid.UUID),
		now:     time.Now,
	}
}

func (r *MemoryRepository) GetClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) ListClinics(_ context.Context) ([]Clinic, error) {
	return r.filterClinics(func(Clinic) bool { return true }), nil
}

func (r *MemoryRepository) FindClinicsByCity(_ context.Context, city string) ([]Clinic, error) {
	return r.filterClinics(func(c Clinic) bool { return strings.EqualFold(c.City, city) }), nil
}

func (r *MemoryRepository) FindClinicsBySpecialization(_ context.Context, specializations []string) ([]Clinic, error) {
	return r.filterClinics(func(c Clinic) bool {
		for _, s := range specializations {
			if c.Offers(s) {
				return true
			}
		}
		return false
	}), nil
}

// filterClinics keeps insertion order, then sorts by rating like the SQL queries.
func (r *MemoryRepository) filterClinics(keep func(Clinic) bool) []Clinic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Clinic
	for _, id := range r.clinicOrder {
		if c := r.clinics[id]; keep(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *MemoryRepository) DistinctCities(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var cities []string
	for _, c := range r.clinics {
		if _, ok := seen[c.City]; ok {
			continue
		}
		seen[c.City] = struct{}{}
		cities = append(cities, c.City)
	}
	sort.Strings(cities)
	return cities, nil
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) ListDoctorsByClinic(_ context.Context, clinicID uuid.UUID) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Doctor
	for _, d := range r.doctors {
		if d.ClinicID == clinicID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) BookedTimes(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []time.Time
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || a.Status != StatusBooked {
			continue
		}
		if !a.AppointmentTime.Before(from) && a.AppointmentTime.Before(to) {
			out = append(out, a.AppointmentTime)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *MemoryRepository) ExistsBooked(_ context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.booked[keyFor(doctorID, at)]
	return ok, nil
}

// CreateBooked is an insert-if-absent under the write lock.
func (r *MemoryRepository) CreateBooked(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyFor(appt.DoctorID, appt.AppointmentTime)
	if _, taken := r.booked[key]; taken {
		return nil, ErrSlotTaken
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.Status = StatusBooked
	appt.CreatedAt = r.now()

	r.booked[key] = appt.ID
	r.appointments = append(r.appointments, appt)
	return &appt, nil
}

func (r *MemoryRepository) SaveClinic(_ context.Context, c Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clinics[c.ID]; !exists {
		r.clinicOrder = append(r.clinicOrder, c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	r.clinics[c.ID] = c
	return nil
}

func (r *MemoryRepository) SaveDoctor(_ context.Context, d Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clinics[d.ClinicID]; !ok {
		return ErrClinicNotFound
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	r.doctors[d.ID] = d
	return nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Appointments returns a copy of every stored appointment.
func (r *MemoryRepository) Appointments() []Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Appointment(nil), r.appointments...)
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]EventLog(nil), r.events...)
}
