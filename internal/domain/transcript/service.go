package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "transcript").Logger()}
}

// Record stores one exchange. Storage failures are logged and swallowed so a
// chat reply never depends on the database.
func (s *Service) Record(ctx context.Context, patientID int, channel, message, response string, relayErr error, latency time.Duration) {
	e := &Exchange{
		PatientID: patientID,
		Channel:   channel,
		Message:   message,
		LatencyMS: int(latency / time.Millisecond),
	}
	if relayErr != nil {
		msg := relayErr.Error()
		e.Error = &msg
	} else {
		e.Response = &response
	}
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error().Err(err).Int("patient_id", patientID).Msg("record chat exchange")
	}
}

func (s *Service) History(ctx context.Context, patientID, limit, offset int) ([]*Exchange, int, error) {
	if patientID <= 0 {
		return nil, 0, fmt.Errorf("patient_id must be positive")
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
