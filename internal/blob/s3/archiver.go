package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// archiveLockKey guards the sweep so one instance archives per run.
const archiveLockKey = "trade_archive"

// multipartThreshold is the JSONL size above which the multipart uploader is
// used instead of a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// Uploader is the slice of Writer the archiver needs.
type Uploader interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver moves old trade records out of PostgreSQL into object storage:
// rows older than the retention window are serialized to JSONL, uploaded
// under archive/trades/YYYY-MM.jsonl, and then deleted from the primary
// store. Deletion happens only after a successful upload.
type Archiver struct {
	writer    Uploader
	trades    domain.TradeStore
	locks     domain.LockManager
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver that keeps retention worth of trades in
// the primary store and sweeps every interval. locks may be nil when running
// a single instance.
func NewArchiver(writer Uploader, trades domain.TradeStore, locks domain.LockManager, retention, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		trades:    trades,
		locks:     locks,
		retention: retention,
		interval:  interval,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Sweep
// failures are logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver started",
		slog.Duration("retention", a.retention),
		slog.Duration("interval", a.interval),
	)
	defer a.logger.Info("archiver stopped")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil {
				a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep performs one archive pass: upload everything older than the
// retention cutoff, then delete it. Safe to call concurrently across
// instances when a lock manager is configured.
func (a *Archiver) Sweep(ctx context.Context) error {
	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, archiveLockKey, a.interval)
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.Debug("archive lock held elsewhere, skipping sweep")
			return nil
		}
		if err != nil {
			return err
		}
		defer unlock()
	}

	cutoff := time.Now().UTC().Add(-a.retention)
	count, err := a.archiveBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if count > 0 {
		a.logger.Info("trades archived",
			slog.Int64("count", count),
			slog.Time("cutoff", cutoff),
		)
	}
	return nil
}

func (a *Archiver) archiveBefore(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(before)
	if int64(len(buf)) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		// The upload succeeded; the rows will be re-archived next sweep.
		return int64(len(trades)), fmt.Errorf("s3blob: archive delete: %w", err)
	}
	if deleted != int64(len(trades)) {
		a.logger.Warn("archive count mismatch",
			slog.Int("uploaded", len(trades)),
			slog.Int64("deleted", deleted),
		)
	}
	return deleted, nil
}

// archivePath partitions archives by the year-month of the cutoff:
//
//	archive/trades/2026-08.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/trades/%s.jsonl", before.Format("2006-01"))
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
