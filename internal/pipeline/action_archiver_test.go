package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

type memArchiveStore struct {
	*memStore
	actions []domain.MirrorAction
}

func (s *memArchiveStore) ListActionsSince(_ context.Context, since time.Time, _ int) ([]domain.MirrorAction, error) {
	var out []domain.MirrorAction
	for _, a := range s.actions {
		if a.CreatedAt.After(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

type recBlob struct {
	err  error
	keys []string
	data [][]byte
}

func (b *recBlob) Put(_ context.Context, key string, r io.Reader, _ string) error {
	if b.err != nil {
		return b.err
	}
	data, _ := io.ReadAll(r)
	b.keys = append(b.keys, key)
	b.data = append(b.data, data)
	return nil
}

func TestActionArchiverExportsOnce(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &memArchiveStore{memStore: newMemStore(), actions: []domain.MirrorAction{
		{ID: "a1", TxHash: "0x1", Kind: domain.ActionIgnore, CreatedAt: base, Result: json.RawMessage(`{"ok":true}`)},
		{ID: "a2", TxHash: "0x2", Kind: "FOLLOW_NOW", CreatedAt: base.Add(time.Second)},
	}}
	blob := &recBlob{}
	a := NewActionArchiver(store, blob, "walletwatch/actions", discard())
	a.now = func() time.Time { return base }

	n, err := a.Run(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Run = %d, %v", n, err)
	}
	wantKey := "walletwatch/actions/2026/01/02/actions-1767323045000-1767323046000.jsonl"
	if len(blob.keys) != 1 || blob.keys[0] != wantKey {
		t.Fatalf("keys = %v", blob.keys)
	}

	sc := bufio.NewScanner(bytes.NewReader(blob.data[0]))
	var recs []archivedAction
	for sc.Scan() {
		var r archivedAction
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		recs = append(recs, r)
	}
	if len(recs) != 2 || recs[0].Action != "IGNORE" || string(recs[0].Result) != `{"ok":true}` || recs[1].ID != "a2" {
		t.Errorf("records = %+v", recs)
	}

	n, err = a.Run(ctx)
	if err != nil || n != 0 || len(blob.keys) != 1 {
		t.Errorf("second Run = %d, %v, uploads %d", n, err, len(blob.keys))
	}

	store.actions = append(store.actions, domain.MirrorAction{ID: "a3", TxHash: "0x3", Kind: "FOLLOW_PASSIVE_ERROR", CreatedAt: base.Add(time.Minute)})
	if n, _ := a.Run(ctx); n != 1 {
		t.Errorf("third Run = %d, want 1", n)
	}
}

func TestActionArchiverUploadFailureKeepsWatermark(t *testing.T) {
	store := &memArchiveStore{memStore: newMemStore(), actions: []domain.MirrorAction{
		{ID: "a1", TxHash: "0x1", Kind: domain.ActionIgnore, CreatedAt: time.Now()},
	}}
	a := NewActionArchiver(store, &recBlob{err: errors.New("s3 down")}, "p", discard())

	if _, err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := store.state[ArchiveWatermarkKey]; ok {
		t.Error("watermark advanced after failed upload")
	}
}

func TestActionArchiverRejectsBadSchedule(t *testing.T) {
	a := NewActionArchiver(&memArchiveStore{memStore: newMemStore()}, &recBlob{}, "p", discard())
	if err := a.RunCron(context.Background(), "not a cron"); err == nil {
		t.Error("bad cron accepted")
	}
}
