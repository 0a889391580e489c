package streamer

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"google.golang.org/api/bigquery/v2"

	"github.com/NissesSenap/tweet-pipeline/internal/storage"
)

const reasonRetriesExhausted = "retries_exhausted"

type rejection struct {
	row     *bigquery.TableDataInsertAllRequestRows
	reason  string
	message string
}

// insertTable streams rows into one table. Rows BigQuery rejects are
// dropped and the rest are sent again; rejections do not count against
// the retry policy. Responses that only report stopped or timed out rows
// do, so a table that keeps timing out is eventually given up on.
func (s *Streamer) insertTable(ctx context.Context, logger *zap.Logger, ref storage.TableRef, rows []*bigquery.TableDataInsertAllRequestRows) {
	resends := 0
	for len(rows) > 0 {
		var resp *bigquery.TableDataInsertAllResponse
		err := s.retry.Do(ctx, func() error {
			var err error
			resp, err = s.svc.Tabledata.InsertAll(ref.ProjectID, ref.DatasetID, ref.TableID,
				&bigquery.TableDataInsertAllRequest{Rows: rows}).Context(ctx).Do()
			return err
		})
		if err != nil {
			logger.Error("Insert failed, giving up on rows", zap.Int("rows", len(rows)), zap.Error(err))
			s.rejectAll(ctx, logger, ref, rows, reasonRetriesExhausted, err.Error())
			return
		}

		if len(resp.InsertErrors) == 0 {
			logger.Debug("Inserted rows", zap.Int("rows", len(rows)))
			s.recordInsert(ctx, logger, ref, len(rows))
			return
		}

		kept, rejected := filterRejected(resp, rows)
		for _, r := range rejected {
			logger.Warn("Row rejected",
				zap.String("insert_id", r.row.InsertId),
				zap.String("reason", r.reason),
				zap.String("message", r.message))
			s.recordRejected(ctx, logger, ref, r)
		}

		if len(rejected) == 0 {
			resends++
			if resends >= s.retry.Attempts {
				logger.Error("Rows kept timing out, giving up", zap.Int("rows", len(rows)))
				s.rejectAll(ctx, logger, ref, rows, reasonRetriesExhausted, "rows stopped or timed out")
				return
			}
		}

		if len(kept) == 0 {
			logger.Warn("All rows rejected, abandoning table")
		}
		rows = kept
	}
}

// filterRejected splits rows by the per-row errors in resp. A row is
// rejected when any of its errors has a reason other than "stopped" or
// "timeout"; those two only mean the row was not attempted.
func filterRejected(resp *bigquery.TableDataInsertAllResponse, rows []*bigquery.TableDataInsertAllRequestRows) ([]*bigquery.TableDataInsertAllRequestRows, []rejection) {
	bad := make(map[int64]rejection)
	for _, rowErrors := range resp.InsertErrors {
		if rowErrors == nil || rowErrors.Index < 0 || rowErrors.Index >= int64(len(rows)) {
			continue
		}
		if _, seen := bad[rowErrors.Index]; seen {
			continue
		}
		for _, e := range rowErrors.Errors {
			if e == nil {
				continue
			}
			switch e.Reason {
			case "stopped", "timeout":
				continue
			}
			bad[rowErrors.Index] = rejection{
				row:     rows[rowErrors.Index],
				reason:  e.Reason,
				message: e.Message,
			}
			break
		}
	}

	if len(bad) == 0 {
		return rows, nil
	}

	kept := make([]*bigquery.TableDataInsertAllRequestRows, 0, len(rows)-len(bad))
	rejected := make([]rejection, 0, len(bad))
	for i, row := range rows {
		if r, ok := bad[int64(i)]; ok {
			rejected = append(rejected, r)
			continue
		}
		kept = append(kept, row)
	}
	return kept, rejected
}

func (s *Streamer) rejectAll(ctx context.Context, logger *zap.Logger, ref storage.TableRef, rows []*bigquery.TableDataInsertAllRequestRows, reason, message string) {
	for _, row := range rows {
		s.recordRejected(ctx, logger, ref, rejection{row: row, reason: reason, message: message})
	}
}

func (s *Streamer) recordInsert(ctx context.Context, logger *zap.Logger, ref storage.TableRef, n int) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordInsert(ctx, ref, n); err != nil {
		logger.Error("Failed to record insert", zap.Error(err))
	}
}

func (s *Streamer) recordRejected(ctx context.Context, logger *zap.Logger, ref storage.TableRef, r rejection) {
	if s.store == nil {
		return
	}

	payload, err := json.Marshal(r.row.Json)
	if err != nil {
		payload = nil
	}

	err = s.store.RecordRejected(ctx, &storage.RejectedRow{
		TableRef:  ref,
		InsertID:  r.row.InsertId,
		Reason:    r.reason,
		Message:   r.message,
		Payload:   string(payload),
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		logger.Error("Failed to record rejected row", zap.String("insert_id", r.row.InsertId), zap.Error(err))
	}
}
