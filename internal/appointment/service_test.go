package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	redisclient "github.com/shiva-1301/hospiico/internal/redis"
)

func seededRepo(t *testing.T) (*MemoryRepository, Clinic, Doctor) {
	t.Helper()
	repo := NewMemoryRepository()
	clinic := Clinic{ID: uuid.New(), Name: "Apollo", City: "Chennai", Specializations: []string{"Cardiology"}}
	doctor := Doctor{ID: uuid.New(), ClinicID: clinic.ID, Name: "Dr. Rao", Specialization: "Cardiology"}
	require.NoError(t, repo.SaveClinic(context.Background(), clinic))
	require.NoError(t, repo.SaveDoctor(context.Background(), doctor))
	return repo, clinic, doctor
}

func TestBookTwiceKeepsOneBooking(t *testing.T) {
	repo, clinic, doctor := seededRepo(t)
	svc := NewService(repo, redisclient.NewLocalLocker(redisclient.LockOptions{Wait: time.Second}), zap.NewNop())

	at := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)
	appt := Appointment{ClinicID: clinic.ID, DoctorID: doctor.ID, AppointmentTime: at}

	first, err := svc.Book(context.Background(), appt)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, first.Status)

	_, err = svc.Book(context.Background(), appt)
	require.ErrorIs(t, err, ErrSlotTaken)

	assert.Len(t, repo.Appointments(), 1)

	events := repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventAppointmentBooked, events[0].EventType)
	assert.Equal(t, EventBookingConflict, events[1].EventType)
}

func TestConcurrentBookingsOneWinner(t *testing.T) {
	tests := []struct {
		name   string
		locker func(t *testing.T) redisclient.Locker
	}{
		{"no lock", func(t *testing.T) redisclient.Locker { return nil }},
		{"local lock", func(t *testing.T) redisclient.Locker {
			return redisclient.NewLocalLocker(redisclient.LockOptions{Wait: 2 * time.Second})
		}},
		{"redis lock", func(t *testing.T) redisclient.Locker {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return redisclient.NewRedisLocker(client, redisclient.LockOptions{Wait: 2 * time.Second, RetryEvery: 5 * time.Millisecond})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, clinic, doctor := seededRepo(t)
			svc := NewService(repo, tt.locker(t), nil)
			at := time.Date(2030, 3, 4, 14, 30, 0, 0, time.UTC)

			const n = 16
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.Book(context.Background(), Appointment{ClinicID: clinic.ID, DoctorID: doctor.ID, AppointmentTime: at})
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, err := range errs {
				switch {
				case err == nil:
					wins++
				case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrSlotBeingBooked):
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, wins)
			assert.Len(t, repo.Appointments(), 1)
		})
	}
}

func TestMemoryRepositoryQueries(t *testing.T) {
	repo, clinic, doctor := seededRepo(t)
	ctx := context.Background()

	other := Clinic{ID: uuid.New(), Name: "City Care", City: "chennai", Rating: 4.9, Specializations: []string{"ENT"}}
	require.NoError(t, repo.SaveClinic(ctx, other))

	byCity, err := repo.FindClinicsByCity(ctx, "CHENNAI")
	require.NoError(t, err)
	require.Len(t, byCity, 2)
	assert.Equal(t, "City Care", byCity[0].Name)

	bySpec, err := repo.FindClinicsBySpecialization(ctx, []string{"cardiology"})
	require.NoError(t, err)
	require.Len(t, bySpec, 1)
	assert.Equal(t, clinic.ID, bySpec[0].ID)

	docs, err := repo.ListDoctorsByClinic(ctx, clinic.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doctor.ID, docs[0].ID)

	err = repo.SaveDoctor(ctx, Doctor{ID: uuid.New(), ClinicID: uuid.New()})
	require.ErrorIs(t, err, ErrClinicNotFound)

	day := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	_, err = repo.CreateBooked(ctx, Appointment{ClinicID: clinic.ID, DoctorID: doctor.ID, AppointmentTime: day.Add(10 * time.Hour)})
	require.NoError(t, err)

	times, err := repo.BookedTimes(ctx, doctor.ID, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day.Add(10 * time.Hour)}, times)

	none, err := repo.BookedTimes(ctx, doctor.ID, day.Add(24*time.Hour), day.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}
