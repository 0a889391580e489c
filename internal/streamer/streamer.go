// Package streamer buffers rows and streams them into BigQuery with
// tabledata.insertAll.
package streamer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"google.golang.org/api/bigquery/v2"

	"github.com/NissesSenap/tweet-pipeline/internal/retry"
	"github.com/NissesSenap/tweet-pipeline/internal/storage"
)

// ErrStopped is returned by QueueRow once Stop was called.
var ErrStopped = errors.New("streamer is stopped")

// Row is a single row destined for a table.
type Row struct {
	ProjectID string
	DatasetID string
	TableID   string
	Data      map[string]bigquery.JsonValue
}

func (r Row) table() storage.TableRef {
	return storage.TableRef{ProjectID: r.ProjectID, DatasetID: r.DatasetID, TableID: r.TableID}
}

// Streamer fans rows out to a fixed set of workers. Each worker keeps its
// own buffer and flushes it when it holds MaxRows rows, every MaxDelay,
// and on Stop.
type Streamer struct {
	svc   *bigquery.Service
	store storage.Store

	workers  int
	maxRows  int
	maxDelay time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
	retry    retry.Policy

	newInsertID func() string

	// Unbuffered: a row is either held by a running worker or refused.
	rows chan Row

	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New returns a Streamer writing through svc. Inserted and rejected rows
// are recorded in store when it is not nil.
func New(svc *bigquery.Service, store storage.Store, opts ...Option) (*Streamer, error) {
	if svc == nil {
		return nil, errors.New("bigquery service is nil")
	}

	s := &Streamer{
		svc:         svc,
		store:       store,
		workers:     DefaultWorkers,
		maxRows:     DefaultMaxRows,
		maxDelay:    DefaultMaxDelay,
		clock:       clockwork.NewRealClock(),
		logger:      zap.NewNop(),
		retry:       retry.Default,
		newInsertID: uuid.NewString,
		rows:        make(chan Row),
		stop:        make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start launches the workers. Calling it again has no effect.
func (s *Streamer) Start() {
	s.startOnce.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.work(i)
		}
	})
}

// QueueRow hands row to a worker. It blocks until a worker takes it, ctx
// is done or the streamer stops.
func (s *Streamer) QueueRow(ctx context.Context, row Row) error {
	select {
	case <-s.stop:
		return ErrStopped
	default:
	}

	select {
	case s.rows <- row:
		return nil
	case <-s.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop flushes every worker and waits for them to return. It is safe to
// call more than once.
func (s *Streamer) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Streamer) work(id int) {
	defer s.wg.Done()

	logger := s.logger.With(zap.Int("worker", id))
	ticker := s.clock.NewTicker(s.maxDelay)
	defer ticker.Stop()

	buf := make([]Row, 0, s.maxRows)
	for {
		select {
		case <-s.stop:
			s.flush(logger, buf)
			return
		case <-ticker.Chan():
			buf = s.flush(logger, buf)
		case row := <-s.rows:
			buf = append(buf, row)
			if len(buf) < s.maxRows {
				continue
			}
			buf = s.flush(logger, buf)
		}
	}
}

// flush inserts rows table by table and returns the emptied buffer.
func (s *Streamer) flush(logger *zap.Logger, rows []Row) []Row {
	if len(rows) == 0 {
		return rows
	}

	// Flushes outlive Stop; the retry policy bounds them.
	ctx := context.Background()

	// insertAll takes a single table per request
	var order []storage.TableRef
	tables := make(map[storage.TableRef][]*bigquery.TableDataInsertAllRequestRows)
	for _, r := range rows {
		ref := r.table()
		if _, ok := tables[ref]; !ok {
			order = append(order, ref)
		}
		tables[ref] = append(tables[ref], &bigquery.TableDataInsertAllRequestRows{
			InsertId: s.newInsertID(),
			Json:     r.Data,
		})
	}

	for _, ref := range order {
		s.insertTable(ctx, logger.With(zap.String("table", ref.Name())), ref, tables[ref])
	}

	clear(rows)
	return rows[:0]
}
