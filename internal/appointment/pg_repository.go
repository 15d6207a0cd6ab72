package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const clinicColumns = `id, name, address, city, state, latitude, longitude, rating, image_url, phone, specializations, created_at`

const doctorColumns = `id, clinic_id, name, specialization, qualifications, experience, image_url, created_at`

const appointmentColumns = `id, clinic_id, doctor_id, user_id, appointment_time, status,
	patient_name, patient_age, patient_gender, patient_phone, patient_email, reason, created_at`

// Helpers

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Address,
		&c.City,
		&c.State,
		&c.Latitude,
		&c.Longitude,
		&c.Rating,
		&c.ImageURL,
		&c.Phone,
		&c.Specializations,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	return &c, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&d.Name,
		&d.Specialization,
		&d.Qualifications,
		&d.Experience,
		&d.ImageURL,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string

	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.DoctorID,
		&a.UserID,
		&a.AppointmentTime,
		&status,
		&a.Patient.Name,
		&a.Patient.Age,
		&a.Patient.Gender,
		&a.Patient.Phone,
		&a.Patient.Email,
		&a.Reason,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = Status(status)
	return &a, nil
}

func collectClinics(rows pgx.Rows) ([]Clinic, error) {
	defer rows.Close()

	var result []Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+clinicColumns+`
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) ListClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+clinicColumns+`
		FROM clinics
		ORDER BY rating DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list clinics: %w", err)
	}
	return collectClinics(rows)
}

func (r *PgRepository) FindClinicsByCity(ctx context.Context, city string) ([]Clinic, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+clinicColumns+`
		FROM clinics
		WHERE lower(city) = lower($1)
		ORDER BY rating DESC, name
	`, city)
	if err != nil {
		return nil, fmt.Errorf("find clinics by city: %w", err)
	}
	return collectClinics(rows)
}

func (r *PgRepository) FindClinicsBySpecialization(ctx context.Context, specializations []string) ([]Clinic, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+clinicColumns+`
		FROM clinics
		WHERE specializations && $1::text[]
		ORDER BY rating DESC, name
	`, specializations)
	if err != nil {
		return nil, fmt.Errorf("find clinics by specialization: %w", err)
	}
	return collectClinics(rows)
}

func (r *PgRepository) DistinctCities(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT city FROM clinics ORDER BY city`)
	if err != nil {
		return nil, fmt.Errorf("distinct cities: %w", err)
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, err
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctorsByClinic(ctx context.Context, clinicID uuid.UUID) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE clinic_id = $1
		ORDER BY name
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) BookedTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE doctor_id = $1
		  AND status = 'BOOKED'
		  AND appointment_time >= $2
		  AND appointment_time < $3
		ORDER BY appointment_time
	`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("booked times: %w", err)
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		result = append(result, at)
	}
	return result, rows.Err()
}

func (r *PgRepository) ExistsBooked(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND appointment_time = $2 AND status = 'BOOKED'
		)
	`, doctorID, at).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check booked slot: %w", err)
	}
	return exists, nil
}

// CreateBooked relies on appointments_doctor_time_booked_uniq: a conflicting
// insert returns no row instead of a second BOOKED appointment.
func (r *PgRepository) CreateBooked(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, clinic_id, doctor_id, user_id, appointment_time, status,
			patient_name, patient_age, patient_gender, patient_phone, patient_email, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, 'BOOKED', $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (doctor_id, appointment_time) WHERE status = 'BOOKED' DO NOTHING
		RETURNING `+appointmentColumns+`
	`, id, appt.ClinicID, appt.DoctorID, appt.UserID, appt.AppointmentTime,
		appt.Patient.Name, appt.Patient.Age, appt.Patient.Gender, appt.Patient.Phone, appt.Patient.Email, appt.Reason)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrSlotTaken
		case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	return created, nil
}

func (r *PgRepository) SaveClinic(ctx context.Context, c Clinic) error {
	specs := c.Specializations
	if specs == nil {
		specs = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO clinics (id, name, address, city, state, latitude, longitude, rating, image_url, phone, specializations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			rating = EXCLUDED.rating,
			image_url = EXCLUDED.image_url,
			phone = EXCLUDED.phone,
			specializations = EXCLUDED.specializations
	`, c.ID, c.Name, c.Address, c.City, c.State, c.Latitude, c.Longitude, c.Rating, c.ImageURL, c.Phone, specs)
	if err != nil {
		return fmt.Errorf("save clinic: %w", err)
	}
	return nil
}

func (r *PgRepository) SaveDoctor(ctx context.Context, d Doctor) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO doctors (id, clinic_id, name, specialization, qualifications, experience, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			clinic_id = EXCLUDED.clinic_id,
			name = EXCLUDED.name,
			specialization = EXCLUDED.specialization,
			qualifications = EXCLUDED.qualifications,
			experience = EXCLUDED.experience,
			image_url = EXCLUDED.image_url
	`, d.ID, d.ClinicID, d.Name, d.Specialization, d.Qualifications, d.Experience, d.ImageURL)
	if err != nil {
		return fmt.Errorf("save doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
