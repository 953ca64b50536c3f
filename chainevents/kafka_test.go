package chainevents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	drained   chan struct{}
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{drained: make(chan struct{})}
	for i, v := range values {
		r.pending = append(r.pending, kafka.Message{Offset: int64(i), Value: []byte(v)})
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	if len(r.pending) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type recordingHandler struct {
	mu       sync.Mutex
	applied  []Event
	failures int
}

func (h *recordingHandler) Apply(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ev.Name == "Transfer" {
		return ErrInvalidEvent
	}
	if h.failures > 0 {
		h.failures--
		return errors.New("store unavailable")
	}
	h.applied = append(h.applied, ev)
	return nil
}

func runUntilDrained(t *testing.T, r *fakeReader, h Handler) {
	t.Helper()
	src := NewSource(r, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, h) }()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("source did not drain")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestKafkaSourceCommitsAfterApply(t *testing.T) {
	r := newFakeReader(
		`{"event":"MiniAppSessionRevoked","contractSessionId":"a"}`,
		`not json`,
		`{"event":"Transfer"}`,
		`{"event":"PermissionRevoked","userId":"fid:1","wallet":"0x52908400098527886e0f7030069857d2e4169ee7"}`,
	)
	h := &recordingHandler{}
	runUntilDrained(t, r, h)

	if len(r.committed) != 4 {
		t.Fatalf("committed %v, want all four offsets", r.committed)
	}
	if len(h.applied) != 2 || h.applied[0].Name != SessionRevoked || h.applied[1].Name != PermissionRevoked {
		t.Fatalf("unexpected applied events %+v", h.applied)
	}
}

func TestKafkaSourceRetriesTransientFailures(t *testing.T) {
	r := newFakeReader(`{"event":"MiniAppSessionRevoked","contractSessionId":"a"}`)
	h := &recordingHandler{failures: 3}
	runUntilDrained(t, r, h)

	if len(h.applied) != 1 || len(r.committed) != 1 {
		t.Fatalf("applied %d committed %d", len(h.applied), len(r.committed))
	}
}

func TestKafkaSourceStopsWithoutCommitOnCancel(t *testing.T) {
	r := newFakeReader(`{"event":"MiniAppSessionRevoked","contractSessionId":"a"}`)
	h := &recordingHandler{failures: 1 << 30}
	src := NewSource(r, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := src.Run(ctx, h); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(r.committed) != 0 {
		t.Fatalf("committed %v during outage", r.committed)
	}
}

func TestNewKafkaSourceRequiresTopic(t *testing.T) {
	if _, err := NewKafkaSource(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil); err == nil {
		t.Fatal("expected error without topic")
	}
}
