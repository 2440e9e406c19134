package framelog

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"EYE_MONITOR/go-backend/internal/models"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRecords(n int) []models.FrameRecord {
	out := make([]models.FrameRecord, n)
	for i := range out {
		out[i] = models.FrameRecord{
			Seq:       uint64(i + 1),
			Blink:     i / 10,
			BlinkRate: 0.25,
			EAR:       0.3,
			FPS:       20,
		}
	}
	return out
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	s, err := NewCSVSink(path)
	require.NoError(t, err)

	for _, r := range sampleRecords(45) {
		require.NoError(t, s.Record(r))
	}
	require.Equal(t, 45, s.Rows())
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 46)
	require.Equal(t, []string{"Blink", "blink_rate", "EAR", "FPS"}, rows[0])
	require.Equal(t, []string{"0", "0.25", "0.3", "20"}, rows[1])
	require.Equal(t, "4", rows[45][0])
}

func TestCSVSinkBadPath(t *testing.T) {
	_, err := NewCSVSink(filepath.Join(t.TempDir(), "missing", "log.csv"))
	require.Error(t, err)
}

func TestXLSXSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.xlsx")
	s, err := NewXLSXSink(path)
	require.NoError(t, err)

	for _, r := range sampleRecords(3) {
		require.NoError(t, s.Record(r))
	}
	require.NoError(t, s.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"Blink", "blink_rate", "EAR", "FPS"}, rows[0])
	require.Equal(t, []string{"0", "0.25", "0.3", "20"}, rows[1])
}

type fakeStore struct {
	batches [][]models.FrameRecord
	err     error
}

func (f *fakeStore) InsertFrameRecords(ctx context.Context, records []models.FrameRecord) error {
	cp := make([]models.FrameRecord, len(records))
	copy(cp, records)
	f.batches = append(f.batches, cp)
	return f.err
}

func TestDBSinkBatches(t *testing.T) {
	store := &fakeStore{}
	s := NewDBSink(store, 4)

	for _, r := range sampleRecords(10) {
		require.NoError(t, s.Record(r))
	}
	require.Len(t, store.batches, 2)
	require.NoError(t, s.Close())

	require.Len(t, store.batches, 3)
	require.Len(t, store.batches[2], 2)
	require.Equal(t, uint64(9), store.batches[2][0].Seq)

	// Nothing left to flush.
	require.NoError(t, s.Close())
	require.Len(t, store.batches, 3)
}

func TestDBSinkDiscardsFailedBatch(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	s := NewDBSink(store, 2)

	recs := sampleRecords(2)
	require.NoError(t, s.Record(recs[0]))
	require.Error(t, s.Record(recs[1]))
	require.Empty(t, s.batch)
}

type recordingSink struct {
	got    int
	err    error
	closed bool
}

func (r *recordingSink) Record(models.FrameRecord) error { r.got++; return r.err }
func (r *recordingSink) Close() error                    { r.closed = true; return r.err }

func TestMultiFansOut(t *testing.T) {
	bad := &recordingSink{err: errors.New("broken")}
	good := &recordingSink{}
	m := Multi{bad, good}

	err := m.Record(models.FrameRecord{})
	require.Error(t, err)
	require.Equal(t, 1, bad.got)
	require.Equal(t, 1, good.got)

	require.Error(t, m.Close())
	require.True(t, bad.closed)
	require.True(t, good.closed)

	require.NoError(t, Multi{}.Record(models.FrameRecord{}))
}
