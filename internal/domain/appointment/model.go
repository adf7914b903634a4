package appointment

import "fmt"

// Doctor is the subset of a doctor record the booking flow reads from the
// API gateway.
type Doctor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Booking is the appointment returned by the gateway after a booking.
type Booking struct {
	ID     int    `json:"id,omitempty"`
	Doctor string `json:"doctor,omitempty"`
	Time   string `json:"time,omitempty"`
	Status string `json:"status,omitempty"`
}

type doctorList struct {
	Doctors []Doctor `json:"doctors"`
}

type bookingRequest struct {
	PatientID string `json:"patient_id"`
	Doctor    string `json:"doctor"`
}

type bookingResponse struct {
	Appointment Booking `json:"appointment"`
}

// StatusUpdate is the body of a doctor's status change.
type StatusUpdate struct {
	Status string `json:"status"`
}

var validStatuses = map[string]bool{
	"pending": true, "confirmed": true, "cancelled": true,
}

func (u StatusUpdate) Validate() error {
	if u.Status == "" {
		return fmt.Errorf("status is required")
	}
	if !validStatuses[u.Status] {
		return fmt.Errorf("invalid appointment status: %s", u.Status)
	}
	return nil
}
