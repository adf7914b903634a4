package transcript

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ conn queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{conn: pool} }

const exchangeCols = `id, patient_id, channel, message, response, error, latency_ms, created_at`

func scanExchange(row pgx.Row) (*Exchange, error) {
	var e Exchange
	err := row.Scan(&e.ID, &e.PatientID, &e.Channel, &e.Message, &e.Response, &e.Error, &e.LatencyMS, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Exchange) error {
	e.ID = uuid.New()
	return r.conn.QueryRow(ctx, `
		INSERT INTO chat_transcript (id, patient_id, channel, message, response, error, latency_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		e.ID, e.PatientID, e.Channel, e.Message, e.Response, e.Error, e.LatencyMS,
	).Scan(&e.CreatedAt)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID, limit, offset int) ([]*Exchange, int, error) {
	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM chat_transcript WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn.Query(ctx, `SELECT `+exchangeCols+` FROM chat_transcript
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Exchange
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
