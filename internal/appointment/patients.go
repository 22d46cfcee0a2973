package appointment

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidPatient = errors.New("invalid patient data")

var documentTypes = map[string]bool{
	"CC": true, // citizenship card
	"TI": true, // identity card
	"RC": true, // civil registry
	"CE": true, // foreigner card
	"PA": true, // passport
}

type RegisterPatientRequest struct {
	Username       string
	PasswordHash   string
	FirstName      string
	LastName       string
	Email          string
	DocumentType   string
	DocumentNumber string
	BirthDate      Date
	Phone          string
}

// RegisterPatient creates the patient's account and profile together.
func (s *Service) RegisterPatient(ctx context.Context, req RegisterPatientRequest) (*Patient, error) {
	if err := validatePatient(req, s.Today()); err != nil {
		return nil, err
	}

	email := optionalEmail(req.Email)

	var created *Patient
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.CreatePatient(ctx, NewPatient{
			Username:       strings.TrimSpace(req.Username),
			PasswordHash:   req.PasswordHash,
			FirstName:      strings.TrimSpace(req.FirstName),
			LastName:       strings.TrimSpace(req.LastName),
			Email:          email,
			DocumentType:   req.DocumentType,
			DocumentNumber: strings.TrimSpace(req.DocumentNumber),
			BirthDate:      req.BirthDate,
			Phone:          strings.TrimSpace(req.Phone),
		})
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("patient registered", "patient_id", created.ID)
	return created, nil
}

// UpdatePatientContact lets a patient change their email and phone.
func (s *Service) UpdatePatientContact(ctx context.Context, patientID uuid.UUID, email, phone string) (*Patient, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrInvalidPatient)
	}
	var emailPtr *string
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: email is not valid", ErrInvalidPatient)
		}
		emailPtr = &email
	}

	if err := s.repo.UpdatePatientContact(ctx, patientID, emailPtr, phone); err != nil {
		return nil, wrapLoad("patient", err, ErrPatientNotFound)
	}
	return s.GetPatient(ctx, patientID)
}

// UpdatePatientRequest replaces a patient's whole profile. An empty Email clears it.
type UpdatePatientRequest struct {
	FirstName      string
	LastName       string
	Email          string
	DocumentType   string
	DocumentNumber string
	BirthDate      Date
	Phone          string
}

// UpdatePatient is the advisor's full profile edit. The document number stays unique.
func (s *Service) UpdatePatient(ctx context.Context, patientID uuid.UUID, req UpdatePatientRequest) (*Patient, error) {
	if err := validateProfile(req, s.Today()); err != nil {
		return nil, err
	}

	err := s.repo.UpdatePatient(ctx, patientID, PatientProfile{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          optionalEmail(req.Email),
		DocumentType:   req.DocumentType,
		DocumentNumber: strings.TrimSpace(req.DocumentNumber),
		BirthDate:      req.BirthDate,
		Phone:          strings.TrimSpace(req.Phone),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateDocument) {
			return nil, err
		}
		return nil, wrapLoad("patient", err, ErrPatientNotFound)
	}

	s.logger.Info("patient updated", "patient_id", patientID)
	return s.GetPatient(ctx, patientID)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		return nil, wrapLoad("patient", err, ErrPatientNotFound)
	}
	return p, nil
}

// ListPatients returns patients ordered by last and first name. With a
// DocumentNumber it is an exact lookup that yields at most one patient.
func (s *Service) ListPatients(ctx context.Context, f PatientFilter) ([]Patient, error) {
	f.DocumentNumber = strings.TrimSpace(f.DocumentNumber)
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	patients, err := s.repo.ListPatients(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

func validatePatient(req RegisterPatientRequest, today Date) error {
	switch {
	case strings.TrimSpace(req.Username) == "":
		return fmt.Errorf("%w: username is required", ErrInvalidPatient)
	case req.PasswordHash == "":
		return fmt.Errorf("%w: password is required", ErrInvalidPatient)
	}
	return validateProfile(UpdatePatientRequest{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		BirthDate:      req.BirthDate,
		Phone:          req.Phone,
	}, today)
}

func validateProfile(req UpdatePatientRequest, today Date) error {
	switch {
	case strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "":
		return fmt.Errorf("%w: first and last name are required", ErrInvalidPatient)
	case !documentTypes[req.DocumentType]:
		return fmt.Errorf("%w: unknown document type %q", ErrInvalidPatient, req.DocumentType)
	case strings.TrimSpace(req.DocumentNumber) == "":
		return fmt.Errorf("%w: document number is required", ErrInvalidPatient)
	case req.BirthDate.IsZero() || today.Before(req.BirthDate):
		return fmt.Errorf("%w: birth date must not be in the future", ErrInvalidPatient)
	case strings.TrimSpace(req.Phone) == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidPatient)
	}
	if e := strings.TrimSpace(req.Email); e != "" {
		if _, err := mail.ParseAddress(e); err != nil {
			return fmt.Errorf("%w: email is not valid", ErrInvalidPatient)
		}
	}
	return nil
}

func optionalEmail(e string) *string {
	if e = strings.TrimSpace(e); e == "" {
		return nil
	}
	return &e
}
