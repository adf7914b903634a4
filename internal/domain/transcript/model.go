package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Channels a message can arrive on.
const (
	ChannelREST      = "rest"
	ChannelWebSocket = "ws"
)

// Exchange is one relayed chat turn. Exactly one of Response and Error is
// set.
type Exchange struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID int       `db:"patient_id" json:"patient_id"`
	Channel   string    `db:"channel" json:"channel"`
	Message   string    `db:"message" json:"message"`
	Response  *string   `db:"response" json:"response,omitempty"`
	Error     *string   `db:"error" json:"error,omitempty"`
	LatencyMS int       `db:"latency_ms" json:"latency_ms"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
