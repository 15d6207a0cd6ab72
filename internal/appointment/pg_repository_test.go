package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clinicCols = []string{"id", "name", "address", "city", "state", "latitude", "longitude", "rating", "image_url", "phone", "specializations", "created_at"}

var appointmentCols = []string{"id", "clinic_id", "doctor_id", "user_id", "appointment_time", "status",
	"patient_name", "patient_age", "patient_gender", "patient_phone", "patient_email", "reason", "created_at"}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func TestPgGetClinicByID(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	lat, lng := 17.385, 78.4867
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM clinics\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(clinicCols).
			AddRow(id, "Sunrise Hospital", "1 MG Road", "Hyderabad", "Telangana", &lat, &lng, 4.5, "", "040-1234", []string{"Cardiology", "ENT"}, now))

	c, err := repo.GetClinicByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Hospital", c.Name)
	assert.True(t, c.HasCoordinates())
	assert.True(t, c.Offers("ent"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetClinicByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM clinics`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetClinicByID(context.Background(), id)
	require.ErrorIs(t, err, ErrClinicNotFound)
}

func TestPgGetDoctorByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM doctors`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetDoctorByID(context.Background(), id)
	require.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestPgCreateBooked(t *testing.T) {
	mock, repo := newMockRepo(t)

	at := time.Date(2030, 1, 7, 9, 30, 0, 0, time.UTC)
	appt := Appointment{
		ID:              uuid.New(),
		ClinicID:        uuid.New(),
		DoctorID:        uuid.New(),
		AppointmentTime: at,
		Patient:         Patient{Name: "Asha"},
	}
	user := "user-1"
	age := 31

	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(appt.ID, appt.ClinicID, appt.DoctorID, pgxmock.AnyArg(), at,
			"Asha", pgxmock.AnyArg(), "", "", "", "").
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(appt.ID, appt.ClinicID, appt.DoctorID, &user, at, "BOOKED", "Asha", &age, "", "", "", "", time.Now()))

	created, err := repo.CreateBooked(context.Background(), appt)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, created.Status)
	assert.Equal(t, appt.ID, created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateBookedConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"on conflict do nothing", pgx.ErrNoRows},
		{"unique violation", &pgconn.PgError{Code: "23505"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)

			mock.ExpectQuery(`INSERT INTO appointments`).
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(tt.err)

			_, err := repo.CreateBooked(context.Background(), Appointment{DoctorID: uuid.New(), AppointmentTime: time.Now()})
			require.ErrorIs(t, err, ErrSlotTaken)
		})
	}
}

func TestPgExistsBooked(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctor := uuid.New()
	at := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(doctor, at).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsBooked(context.Background(), doctor, at)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPgBookedTimes(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctor := uuid.New()
	from := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	t1 := from.Add(9 * time.Hour)
	t2 := from.Add(14 * time.Hour)

	mock.ExpectQuery(`SELECT appointment_time\s+FROM appointments`).
		WithArgs(doctor, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"appointment_time"}).AddRow(t1).AddRow(t2))

	times, err := repo.BookedTimes(context.Background(), doctor, from, to)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{t1, t2}, times)
}

func TestPgDistinctCities(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT DISTINCT city FROM clinics`).
		WillReturnRows(pgxmock.NewRows([]string{"city"}).AddRow("Chennai").AddRow("Hyderabad"))

	cities, err := repo.DistinctCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Chennai", "Hyderabad"}, cities)
}

func TestPgInsertEvent(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO event_logs`).
		WithArgs(EventAppointmentBooked, pgxmock.AnyArg(), []byte("{}"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InsertEvent(context.Background(), EventLog{EventType: EventAppointmentBooked}))
	require.NoError(t, mock.ExpectationsWereMet())
}
