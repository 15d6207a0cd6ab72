// Package seed fills a catalog with demo hospitals and doctors.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/shiva-1301/hospiico/internal/appointment"
	"github.com/shiva-1301/hospiico/internal/chat"
)

// Catalog is the write side of appointment.Repository.
type Catalog interface {
	SaveClinic(ctx context.Context, c appointment.Clinic) error
	SaveDoctor(ctx context.Context, d appointment.Doctor) error
}

type city struct {
	name, state string
	lat, lng    float64
}

var cities = []city{
	{"Hyderabad", "Telangana", 17.3850, 78.4867},
	{"Warangal", "Telangana", 17.9689, 79.5941},
	{"Bengaluru", "Karnataka", 12.9716, 77.5946},
	{"Chennai", "Tamil Nadu", 13.0827, 80.2707},
	{"Mumbai", "Maharashtra", 19.0760, 72.8777},
	{"Pune", "Maharashtra", 18.5204, 73.8567},
	{"Delhi", "Delhi", 28.6139, 77.2090},
	{"Kolkata", "West Bengal", 22.5726, 88.3639},
	{"Visakhapatnam", "Andhra Pradesh", 17.6868, 83.2185},
	{"Vijayawada", "Andhra Pradesh", 16.5062, 80.6480},
}

var (
	clinicSuffixes = []string{"Hospital", "Multispeciality Hospital", "Clinic", "Medical Centre", "Health Care"}
	qualifications = map[string]string{
		"Cardiology":         "MBBS, MD, DM (Cardiology)",
		"Orthopedics":        "MBBS, MS (Ortho)",
		"Pediatrics":         "MBBS, MD (Paediatrics)",
		"Dermatology":        "MBBS, MD (Dermatology)",
		"Neurology":          "MBBS, MD, DM (Neurology)",
		"Gynecology":         "MBBS, MS (OBG)",
		chat.ENT:             "MBBS, MS (ENT)",
		chat.GeneralMedicine: "MBBS, MD (General Medicine)",
		"Surgery":            "MBBS, MS (General Surgery)",
		"Ophthalmology":      "MBBS, MS (Ophthalmology)",
		"Pulmonology":        "MBBS, MD (Pulmonary Medicine)",
		"Oncology":           "MBBS, MD, DM (Medical Oncology)",
	}
)

type Options struct {
	ClinicsPerCity int
	// Seed makes the generated names and coordinates reproducible; zero
	// picks a random seed.
	Seed uint64
	// UnmappedEvery leaves every n-th clinic without coordinates; zero
	// maps all of them.
	UnmappedEvery int
}

type Summary struct {
	Clinics int
	Doctors int
}

// Seed writes ClinicsPerCity clinics for each demo city. Every clinic offers
// General Medicine plus a few other specializations, with one doctor per
// specialization.
func Seed(ctx context.Context, catalog Catalog, opts Options) (Summary, error) {
	if opts.ClinicsPerCity <= 0 {
		opts.ClinicsPerCity = 3
	}
	f := gofakeit.New(opts.Seed)

	var sum Summary
	n := 0
	for _, c := range cities {
		for range opts.ClinicsPerCity {
			n++
			clinic := newClinic(f, c, n, opts.UnmappedEvery)
			if err := catalog.SaveClinic(ctx, clinic); err != nil {
				return sum, fmt.Errorf("save clinic %s: %w", clinic.Name, err)
			}
			sum.Clinics++

			for _, spec := range clinic.Specializations {
				d := newDoctor(f, clinic.ID, spec)
				if err := catalog.SaveDoctor(ctx, d); err != nil {
					return sum, fmt.Errorf("save doctor %s: %w", d.Name, err)
				}
				sum.Doctors++
			}
		}
	}
	return sum, nil
}

func newClinic(f *gofakeit.Faker, c city, n, unmappedEvery int) appointment.Clinic {
	id := uuid.New()
	clinic := appointment.Clinic{
		ID:              id,
		Name:            f.LastName() + " " + f.RandomString(clinicSuffixes),
		Address:         fmt.Sprintf("%d, %s, %s", f.Number(1, 400), f.StreetName(), c.name),
		City:            c.name,
		State:           c.state,
		Rating:          float64(f.Number(30, 50)) / 10,
		ImageURL:        "https://picsum.photos/seed/" + id.String() + "/640/360",
		Phone:           "+91 " + f.Numerify("9#########"),
		Specializations: pickSpecializations(f),
	}
	if unmappedEvery <= 0 || n%unmappedEvery != 0 {
		// within roughly 8km of the city centre
		lat := c.lat + f.Float64Range(-0.07, 0.07)
		lng := c.lng + f.Float64Range(-0.07, 0.07)
		clinic.Latitude, clinic.Longitude = &lat, &lng
	}
	return clinic
}

func pickSpecializations(f *gofakeit.Faker) []string {
	others := make([]string, 0, len(chat.Specializations))
	for _, s := range chat.Specializations {
		if s != chat.GeneralMedicine {
			others = append(others, s)
		}
	}
	f.ShuffleStrings(others)
	return append([]string{chat.GeneralMedicine}, others[:f.Number(3, 5)]...)
}

func newDoctor(f *gofakeit.Faker, clinicID uuid.UUID, spec string) appointment.Doctor {
	id := uuid.New()
	return appointment.Doctor{
		ID:             id,
		ClinicID:       clinicID,
		Name:           "Dr. " + f.FirstName() + " " + f.LastName(),
		Specialization: spec,
		Qualifications: qualifications[spec],
		Experience:     fmt.Sprintf("%d years", f.Number(3, 30)),
		ImageURL:       "https://i.pravatar.cc/300?u=" + strings.ReplaceAll(id.String(), "-", ""),
	}
}
