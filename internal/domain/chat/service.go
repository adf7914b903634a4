// Package chat relays patient messages to the dialogue engine and returns its
// reply, over REST and over a WebSocket.
package chat

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Recorder stores relayed exchanges. Implementations must not fail the call.
type Recorder interface {
	Record(ctx context.Context, patientID int, channel, message, response string, relayErr error, latency time.Duration)
}

// DefaultRecordTimeout bounds how long a transcript write may delay a reply.
const DefaultRecordTimeout = 2 * time.Second

type Service struct {
	relay         Relayer
	recorder      Recorder
	recordTimeout time.Duration
	logger        zerolog.Logger
}

// NewService builds the chat service. recorder may be nil.
func NewService(relay Relayer, recorder Recorder, logger zerolog.Logger) *Service {
	return &Service{
		relay:         relay,
		recorder:      recorder,
		recordTimeout: DefaultRecordTimeout,
		logger:        logger.With().Str("component", "chat").Logger(),
	}
}

// Send relays message on behalf of patientID. The sender id handed to the
// dialogue engine is the decimal patient id, so each patient keeps one
// conversation.
func (s *Service) Send(ctx context.Context, patientID int, channel, message string) (string, error) {
	start := time.Now()
	s.logger.Info().Int("patient_id", patientID).Str("channel", channel).Msg("relaying message")

	reply, err := s.relay.Relay(ctx, strconv.Itoa(patientID), message)
	latency := time.Since(start)
	if err != nil {
		s.logger.Error().Err(err).Int("patient_id", patientID).Dur("latency", latency).Msg("relay failed")
	} else {
		if reply == Fallback {
			s.logger.Warn().Int("patient_id", patientID).Msg("no text in dialogue reply")
		}
		s.logger.Info().Int("patient_id", patientID).Dur("latency", latency).Msg("relay ok")
	}

	if s.recorder != nil {
		// Detached from the caller so a cancelled request is still recorded,
		// but bounded so a stuck store cannot hold the reply.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout)
		s.recorder.Record(recCtx, patientID, channel, message, reply, err, latency)
		cancel()
	}
	return reply, err
}
