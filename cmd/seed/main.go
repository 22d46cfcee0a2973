package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/auth"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

type specialty struct {
	name    string
	minutes int
}

var specialties = []specialty{
	{"General Medicine", 20},
	{"Cardiology", 30},
	{"Dermatology", 20},
	{"Pediatrics", 30},
	{"Gynecology", 30},
	{"Orthopedics", 30},
	{"Psychiatry", 45},
	{"Ophthalmology", 20},
}

// Every professional works Monday to Friday in these two blocks.
var weeklyBlocks = []struct{ start, end appointment.TimeOfDay }{
	{appointment.NewTimeOfDay(8, 0), appointment.NewTimeOfDay(12, 0)},
	{appointment.NewTimeOfDay(14, 0), appointment.NewTimeOfDay(17, 0)},
}

var documentTypes = []string{"CC", "CC", "CC", "CE", "TI", "PA"}

type seeder struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
	hash   string
}

func main() {
	professionals := flag.Int("professionals", 4, "professionals per specialty")
	advisors := flag.Int("advisors", 5, "advisor accounts")
	patients := flag.Int("patients", 2000, "patient accounts")
	password := flag.String("password", "clinic-demo-2024", "password for every seeded account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "seed")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// One bcrypt hash for all accounts keeps the seed fast.
	hash, err := auth.HashPassword(*password)
	if err != nil {
		logger.Error("hash password", "error", err)
		os.Exit(1)
	}
	s := &seeder{pool: pool, logger: logger, hash: hash}

	runCtx := context.Background()
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"admin", s.seedAdmin},
		{"advisors", func(ctx context.Context) error { return s.seedAdvisors(ctx, *advisors) }},
		{"professionals", func(ctx context.Context) error { return s.seedProfessionals(ctx, *professionals) }},
		{"patients", func(ctx context.Context) error { return s.seedPatients(ctx, *patients) }},
	}
	for _, step := range steps {
		if err := step.fn(runCtx); err != nil {
			logger.Error("seed failed", "step", step.name, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("seed complete", "password", *password)
}

func (s *seeder) insertUser(ctx context.Context, tx pgx.Tx, username string, role auth.Role) (uuid.UUID, error) {
	id := uuid.New()
	email := gofakeit.Email()
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, first_name, last_name, email, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, username, s.hash, gofakeit.FirstName(), gofakeit.LastName(), email, string(role))
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user %s: %w", username, err)
	}
	return id, nil
}

func (s *seeder) seedAdmin(ctx context.Context) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := s.insertUser(ctx, tx, "admin", auth.RoleAdmin)
		return err
	})
}

func (s *seeder) seedAdvisors(ctx context.Context, count int) error {
	s.logger.Info("seeding advisors", "count", count)
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 1; i <= count; i++ {
			userID, err := s.insertUser(ctx, tx, fmt.Sprintf("advisor%02d", i), auth.RoleAdvisor)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO advisors (id, user_id) VALUES ($1, $2)`, uuid.New(), userID); err != nil {
				return fmt.Errorf("insert advisor: %w", err)
			}
		}
		return nil
	})
}

func (s *seeder) seedProfessionals(ctx context.Context, perSpecialty int) error {
	s.logger.Info("seeding professionals", "specialties", len(specialties), "per_specialty", perSpecialty)

	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		n := 0
		for _, spec := range specialties {
			specID := uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO specialties (id, name, consultation_minutes)
				VALUES ($1, $2, $3)
			`, specID, spec.name, spec.minutes); err != nil {
				return fmt.Errorf("insert specialty %s: %w", spec.name, err)
			}

			for i := 0; i < perSpecialty; i++ {
				n++
				userID, err := s.insertUser(ctx, tx, fmt.Sprintf("doctor%03d", n), auth.RoleProfessional)
				if err != nil {
					return err
				}
				profID := uuid.New()
				if _, err := tx.Exec(ctx, `
					INSERT INTO professionals (id, user_id, specialty_id, registration_number, phone)
					VALUES ($1, $2, $3, $4, $5)
				`, profID, userID, specID, fmt.Sprintf("RM-%06d", n), gofakeit.Phone()); err != nil {
					return fmt.Errorf("insert professional: %w", err)
				}

				batch := &pgx.Batch{}
				for wd := appointment.Monday; wd <= appointment.Friday; wd++ {
					for _, b := range weeklyBlocks {
						batch.Queue(`
							INSERT INTO schedule_blocks (id, professional_id, weekday, start_time, end_time)
							VALUES ($1, $2, $3, $4::time, $5::time)
						`, uuid.New(), profID, int(wd), b.start.String(), b.end.String())
					}
				}
				if err := tx.SendBatch(ctx, batch).Close(); err != nil {
					return fmt.Errorf("insert schedule blocks: %w", err)
				}
			}
		}
		return nil
	})
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	s.logger.Info("seeding patients", "count", count)

	const batchSize = 500
	today := time.Now()

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				userID, err := s.insertUser(ctx, tx, fmt.Sprintf("patient%05d", i+1), auth.RolePatient)
				if err != nil {
					return err
				}
				birth := gofakeit.DateRange(today.AddDate(-90, 0, 0), today.AddDate(-1, 0, 0))
				if _, err := tx.Exec(ctx, `
					INSERT INTO patients (id, user_id, document_type, document_number, birth_date, phone)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, uuid.New(), userID,
					documentTypes[gofakeit.Number(0, len(documentTypes)-1)],
					fmt.Sprintf("%d", 1000000000+i),
					birth.Format(time.DateOnly),
					gofakeit.Phone(),
				); err != nil {
					return fmt.Errorf("insert patient: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.logger.Info("patients seeded", "done", end, "total", count)
	}
	return nil
}
