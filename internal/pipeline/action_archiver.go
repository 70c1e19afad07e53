package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// ArchiveWatermarkKey is the state key holding the CreatedAt (unix ms) of
// the newest exported action.
const ArchiveWatermarkKey = "archive:actions:last"

// ArchiveStore is the slice of the ledger the archiver touches.
type ArchiveStore interface {
	domain.StateStore
	ListActionsSince(ctx context.Context, since time.Time, limit int) ([]domain.MirrorAction, error)
}

// archivedAction is the JSONL record of one exported action.
type archivedAction struct {
	ID        string          `json:"id"`
	TxHash    string          `json:"tx_hash"`
	Action    string          `json:"action"`
	CreatedAt time.Time       `json:"created_at"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// ActionArchiver exports new mirror actions to object storage as JSON
// Lines. Each run uploads the actions created since the previous run and
// then advances a watermark, so an object is never re-exported.
type ActionArchiver struct {
	store  ArchiveStore
	writer domain.BlobWriter
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewActionArchiver creates an ActionArchiver writing under prefix.
func NewActionArchiver(store ArchiveStore, writer domain.BlobWriter, prefix string, logger *slog.Logger) *ActionArchiver {
	return &ActionArchiver{
		store:  store,
		writer: writer,
		prefix: prefix,
		now:    time.Now,
		logger: logger.With(slog.String("component", "action_archiver")),
	}
}

// Run exports one batch and returns the number of actions uploaded.
func (a *ActionArchiver) Run(ctx context.Context) (int, error) {
	since, err := a.watermark(ctx)
	if err != nil {
		return 0, err
	}

	actions, err := a.store.ListActionsSince(ctx, since, 0)
	if err != nil {
		return 0, fmt.Errorf("pipeline: list actions: %w", err)
	}
	if len(actions) == 0 {
		a.logger.DebugContext(ctx, "no new actions to archive")
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, act := range actions {
		rec := archivedAction{
			ID:        act.ID,
			TxHash:    act.TxHash,
			Action:    string(act.Kind),
			CreatedAt: act.CreatedAt.UTC(),
			Result:    act.Result,
		}
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("pipeline: encode action %s: %w", act.ID, err)
		}
	}

	last := actions[len(actions)-1].CreatedAt
	key := a.objectKey(actions[0].CreatedAt, last)
	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("pipeline: upload %s: %w", key, err)
	}
	if err := a.store.SetState(ctx, ArchiveWatermarkKey, strconv.FormatInt(last.UnixMilli(), 10)); err != nil {
		return len(actions), fmt.Errorf("pipeline: advance archive watermark: %w", err)
	}

	a.logger.InfoContext(ctx, "actions archived",
		slog.String("key", key),
		slog.Int("count", len(actions)),
	)
	return len(actions), nil
}

// RunCron runs the archiver on a standard 5-field cron schedule until ctx is
// done.
func (a *ActionArchiver) RunCron(ctx context.Context, expr string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(expr, func() {
		if _, err := a.Run(ctx); err != nil {
			a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("pipeline: archive schedule %q: %w", expr, err)
	}

	a.logger.InfoContext(ctx, "archiver cron started", slog.String("cron", expr))
	c.Start()
	<-ctx.Done()
	// Let an in-flight upload finish.
	<-c.Stop().Done()
	a.logger.InfoContext(ctx, "archiver cron stopped")
	return nil
}

func (a *ActionArchiver) watermark(ctx context.Context) (time.Time, error) {
	raw, err := a.store.GetState(ctx, ArchiveWatermarkKey)
	if errors.Is(err, domain.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("pipeline: read archive watermark: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("pipeline: archive watermark %q: %w", raw, domain.ErrBadPayload)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// objectKey partitions exports by day of the run:
//
//	<prefix>/2026/01/02/actions-<firstMs>-<lastMs>.jsonl
func (a *ActionArchiver) objectKey(first, last time.Time) string {
	day := a.now().UTC().Format("2006/01/02")
	name := fmt.Sprintf("actions-%d-%d.jsonl", first.UnixMilli(), last.UnixMilli())
	return path.Join(a.prefix, day, name)
}
