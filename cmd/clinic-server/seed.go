package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// seedFile is the YAML layout accepted by "seed --file".
type seedFile struct {
	Admin    *seedUser     `yaml:"admin"`
	Doctors  []seedDoctor  `yaml:"doctors"`
	Patients []seedPatient `yaml:"patients"`
}

type seedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type seedDoctor struct {
	FirstName      string `yaml:"first_name"`
	LastName       string `yaml:"last_name"`
	Specialization string `yaml:"specialization"`
	Email          string `yaml:"email"`
	Phone          string `yaml:"phone_number"`
	Available      *bool  `yaml:"is_available"`
}

type seedPatient struct {
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	DateOfBirth string `yaml:"date_of_birth"`
	Gender      string `yaml:"gender"`
	Email       string `yaml:"email"`
	Phone       string `yaml:"phone_number"`
	Address     string `yaml:"address"`
	Allergies   string `yaml:"allergies"`
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

func (d seedDoctor) input() doctor.Input {
	return doctor.Input{
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Specialization: d.Specialization,
		Email:          d.Email,
		PhoneNumber:    d.Phone,
		IsAvailable:    d.Available,
	}
}

func (p seedPatient) input() patient.Input {
	return patient.Input{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth,
		Gender:      p.Gender,
		Email:       p.Email,
		PhoneNumber: p.Phone,
		Address:     p.Address,
		Allergies:   p.Allergies,
	}
}

// seeder is what "seed" needs from the domain services.
type seeder struct {
	users    *identity.Service
	doctors  *doctor.Service
	patients *patient.Service
	logger   zerolog.Logger
}

// run loads every record through the services so seeded data passes the
// same validation as API input. An admin whose username already exists is
// skipped.
func (s *seeder) run(ctx context.Context, f *seedFile) error {
	if f.Admin != nil {
		_, err := s.users.CreateUser(ctx, f.Admin.Username, f.Admin.Email, f.Admin.Password, []string{auth.RoleAdmin})
		var ve *apperr.ValidationError
		switch {
		case errors.As(err, &ve) && ve.Has("username"):
			s.logger.Info().Str("username", f.Admin.Username).Msg("admin already exists")
		case err != nil:
			return fmt.Errorf("seed admin: %w", err)
		}
	}
	for i, d := range f.Doctors {
		if _, err := s.doctors.CreateDoctor(ctx, d.input()); err != nil {
			return fmt.Errorf("seed doctor %d (%s %s): %w", i+1, d.FirstName, d.LastName, err)
		}
	}
	for i, p := range f.Patients {
		if _, err := s.patients.CreatePatient(ctx, p.input(), nil); err != nil {
			return fmt.Errorf("seed patient %d (%s %s): %w", i+1, p.FirstName, p.LastName, err)
		}
	}
	s.logger.Info().Int("doctors", len(f.Doctors)).Int("patients", len(f.Patients)).Msg("seed complete")
	return nil
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, doctors and patients from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				return fmt.Errorf("--file is required")
			}
			fh, err := os.Open(path)
			if err != nil {
				return err
			}
			defer fh.Close()
			f, err := parseSeed(fh)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			logger, closeLog := newLogger(cfg)
			defer closeLog()

			s := &seeder{
				users:    identity.NewService(identity.NewRepoPG(pool), nil, logger),
				doctors:  doctor.NewService(doctor.NewRepoPG(pool), nil, logger, cfg.PhoneRegion),
				patients: patient.NewService(patient.NewRepoPG(pool), nil, logger, cfg.PhoneRegion, loc),
				logger:   logger,
			}
			return s.run(ctx, f)
		},
	}
	cmd.Flags().String("file", "", "Path to the seed YAML file")
	return cmd
}
