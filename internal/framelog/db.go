package framelog

import (
	"context"
	"log/slog"
	"time"

	"EYE_MONITOR/go-backend/internal/models"
)

const DefaultBatchSize = 100

// FrameStore persists batches of frame records.
type FrameStore interface {
	InsertFrameRecords(ctx context.Context, records []models.FrameRecord) error
}

// DBSink buffers records and writes them in batches.
type DBSink struct {
	store   FrameStore
	size    int
	timeout time.Duration
	batch   []models.FrameRecord
}

func NewDBSink(store FrameStore, batchSize int) *DBSink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DBSink{
		store:   store,
		size:    batchSize,
		timeout: 5 * time.Second,
		batch:   make([]models.FrameRecord, 0, batchSize),
	}
}

func (s *DBSink) Record(rec models.FrameRecord) error {
	s.batch = append(s.batch, rec)
	if len(s.batch) < s.size {
		return nil
	}
	return s.flush()
}

// flush discards the batch whether or not the insert succeeds.
func (s *DBSink) flush() error {
	if len(s.batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.store.InsertFrameRecords(ctx, s.batch)
	if err != nil {
		slog.Error("failed to persist frame records", "count", len(s.batch), "error", err)
	}
	s.batch = s.batch[:0]
	return err
}

func (s *DBSink) Close() error {
	return s.flush()
}
