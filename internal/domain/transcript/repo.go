package transcript

import "context"

type Repository interface {
	Create(ctx context.Context, e *Exchange) error
	ListByPatient(ctx context.Context, patientID, limit, offset int) ([]*Exchange, int, error)
}
