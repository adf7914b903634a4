package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/medchat/medchat/internal/platform/sibling"
)

// Service books appointments through the API gateway and proxies a doctor's
// appointment list and status changes to the patient service.
type Service struct {
	gateway  *sibling.Client
	patients *sibling.Client
}

func NewService(gateway, patients *sibling.Client) *Service {
	return &Service{gateway: gateway, patients: patients}
}

// Doctors lists the doctors known to the API gateway.
func (s *Service) Doctors(ctx context.Context) ([]Doctor, error) {
	var out doctorList
	if err := s.gateway.Do(ctx, http.MethodGet, "/api/doctors/", "", nil, &out); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return out.Doctors, nil
}

// Book creates an appointment for patientID with the named doctor.
func (s *Service) Book(ctx context.Context, patientID, doctor string) (*Booking, error) {
	var out bookingResponse
	req := bookingRequest{PatientID: patientID, Doctor: doctor}
	if err := s.gateway.Do(ctx, http.MethodPost, "/api/appointments/", "", req, &out); err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}
	return &out.Appointment, nil
}

// BookFirstAvailable books with the first doctor the gateway lists. It
// returns (nil, nil) when there are no doctors.
func (s *Service) BookFirstAvailable(ctx context.Context, patientID string) (*Booking, error) {
	doctors, err := s.Doctors(ctx)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, nil
	}
	b, err := s.Book(ctx, patientID, doctors[0].Name)
	if err != nil {
		return nil, err
	}
	if b.Doctor == "" {
		b.Doctor = doctors[0].Name
	}
	return b, nil
}

// ListForDoctor returns the patient service's appointment list for doctorID
// as-is, authenticated with the caller's token.
func (s *Service) ListForDoctor(ctx context.Context, token string, doctorID int) (json.RawMessage, error) {
	var out json.RawMessage
	path := "appointments/?" + url.Values{"doctor_id": {strconv.Itoa(doctorID)}}.Encode()
	if err := s.patients.Do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus forwards a status change for appointment id.
func (s *Service) UpdateStatus(ctx context.Context, token string, id int, upd StatusUpdate) (json.RawMessage, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	var out json.RawMessage
	path := fmt.Sprintf("appointments/%d/", id)
	if err := s.patients.Do(ctx, http.MethodPut, path, token, upd, &out); err != nil {
		return nil, err
	}
	return out, nil
}
