package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiva-1301/hospiico/internal/appointment"
	"github.com/shiva-1301/hospiico/internal/chat"
)

func TestSeedMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := appointment.NewMemoryRepository()

	sum, err := Seed(ctx, repo, Options{ClinicsPerCity: 2, Seed: 42, UnmappedEvery: 5})
	require.NoError(t, err)
	assert.Equal(t, 2*len(cities), sum.Clinics)

	clinics, err := repo.ListClinics(ctx)
	require.NoError(t, err)
	require.Len(t, clinics, sum.Clinics)

	doctors := 0
	unmapped := 0
	for _, c := range clinics {
		assert.True(t, c.Offers(chat.GeneralMedicine), c.Name)
		assert.GreaterOrEqual(t, c.Rating, 3.0)
		assert.LessOrEqual(t, c.Rating, 5.0)
		if !c.HasCoordinates() {
			unmapped++
		}

		ds, err := repo.ListDoctorsByClinic(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, ds, len(c.Specializations))
		for _, d := range ds {
			assert.True(t, c.Offers(d.Specialization))
			assert.NotEmpty(t, d.Qualifications)
		}
		doctors += len(ds)
	}
	assert.Equal(t, sum.Doctors, doctors)
	assert.Equal(t, sum.Clinics/5, unmapped)

	found, err := repo.FindClinicsByCity(ctx, "hyderabad")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

type failingCatalog struct{ appointment.Repository }

func (failingCatalog) SaveClinic(context.Context, appointment.Clinic) error {
	return errors.New("disk full")
}

func TestSeedStopsOnError(t *testing.T) {
	sum, err := Seed(context.Background(), failingCatalog{}, Options{})
	require.ErrorContains(t, err, "disk full")
	assert.Zero(t, sum.Clinics)
}
