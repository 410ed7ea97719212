package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mediaagent/internal/catalog"
	"mediaagent/internal/queue"
	"mediaagent/internal/testsupport"
)

type ledgerCall struct {
	id      int64
	status  queue.Status
	message string
}

type fakeLedger struct {
	mu         sync.Mutex
	nextID     int64
	pendingErr error
	pending    []string
	outcomes   []ledgerCall
	events     *[]string
}

func (l *fakeLedger) RecordPending(_ context.Context, input, _ string, _ int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pendingErr != nil {
		return 0, l.pendingErr
	}
	l.nextID++
	l.pending = append(l.pending, input)
	if l.events != nil {
		*l.events = append(*l.events, "pending:"+input)
	}
	return l.nextID, nil
}

func (l *fakeLedger) RecordOutcome(_ context.Context, id int64, status queue.Status, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, ledgerCall{id: id, status: status, message: message})
	if l.events != nil {
		*l.events = append(*l.events, fmt.Sprintf("outcome:%d:%s", id, status))
	}
	return nil
}

type fakeConverter struct {
	mu    sync.Mutex
	calls []string
	fail    map[string]error
	gate    chan struct{}
	started chan string
}

func (c *fakeConverter) Convert(ctx context.Context, input, _ string) error {
	if c.started != nil {
		c.started <- input
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, input)
	return c.fail[input]
}

func TestDrainProcessesInFIFOOrder(t *testing.T) {
	ledger := &fakeLedger{}
	conv := &fakeConverter{}
	var published []string
	q := queue.New(ledger, conv, queue.PublisherFunc(func(_ context.Context, job *queue.Job) error {
		published = append(published, job.Key())
		return nil
	}), nil)

	ctx := context.Background()
	inputs := []string{"/m/c.avi", "/m/a.mkv", "/m/b.wmv"}
	for _, in := range inputs {
		added, err := q.Enqueue(ctx, queue.NewJob(in, in+".mp4", 0))
		if err != nil || !added {
			t.Fatalf("Enqueue %s: added=%v err=%v", in, added, err)
		}
	}
	q.Close()
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if fmt.Sprint(conv.calls) != fmt.Sprint(inputs) {
		t.Fatalf("unexpected conversion order %v", conv.calls)
	}
	if fmt.Sprint(published) != fmt.Sprint(inputs) {
		t.Fatalf("unexpected publish order %v", published)
	}
	stats := q.Stats()
	if stats.Converted != 3 || stats.Pending != 0 || stats.Failed != 0 || stats.Total() != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(ledger.outcomes) != 3 {
		t.Fatalf("expected one outcome per job, got %v", ledger.outcomes)
	}
}

func TestEnqueueDuplicateShortCircuits(t *testing.T) {
	ledger := &fakeLedger{}
	conv := &fakeConverter{}
	q := queue.New(ledger, conv, nil, nil)
	ctx := context.Background()

	if added, err := q.Enqueue(ctx, queue.NewJob("/m/a.avi", "/m/a.mp4", 7)); err != nil || !added {
		t.Fatalf("first Enqueue: added=%v err=%v", added, err)
	}
	added, err := q.Enqueue(ctx, queue.NewJob("/m/a.avi", "/m/a.mp4", 7))
	if err != nil {
		t.Fatalf("duplicate Enqueue: %v", err)
	}
	if added {
		t.Fatal("expected duplicate to be rejected")
	}
	if len(ledger.pending) != 1 {
		t.Fatalf("expected one ledger row, got %v", ledger.pending)
	}

	q.Close()
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(conv.calls) != 1 {
		t.Fatalf("expected one conversion, got %v", conv.calls)
	}

	if got := q.Find("/m/a.avi"); got == nil || got.Status() != queue.StatusConverted {
		t.Fatalf("expected Find to return the converted job, got %#v", got)
	}
	if _, err := q.Enqueue(ctx, queue.NewJob("/m/a.avi", "/m/a.mp4", 7)); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestLedgerFailureKeepsJobOut(t *testing.T) {
	ledger := &fakeLedger{pendingErr: errors.New("database is locked")}
	q := queue.New(ledger, &fakeConverter{}, nil, nil)
	ctx := context.Background()

	added, err := q.Enqueue(ctx, queue.NewJob("/m/a.avi", "/m/a.mp4", 1))
	if err == nil || added {
		t.Fatalf("expected ledger error, got added=%v err=%v", added, err)
	}
	if q.Find("/m/a.avi") != nil {
		t.Fatal("job should not be visible after ledger failure")
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}

	ledger.pendingErr = nil
	if added, err := q.Enqueue(ctx, queue.NewJob("/m/a.avi", "/m/a.mp4", 1)); err != nil || !added {
		t.Fatalf("retry Enqueue: added=%v err=%v", added, err)
	}
}

func TestLedgerWrittenBeforeJobIsVisible(t *testing.T) {
	var events []string
	ledger := &fakeLedger{events: &events}
	q := queue.New(ledger, &fakeConverter{}, nil, nil)
	ctx := context.Background()

	job := queue.NewJob("/m/a.avi", "/m/a.mp4", 3)
	if _, err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.LedgerID() != 1 {
		t.Fatalf("expected ledger id 1, got %d", job.LedgerID())
	}
	if got := q.Find("/m/a.avi"); got != job || got.Status() != queue.StatusPending {
		t.Fatalf("unexpected Find result %#v", got)
	}
	q.Close()
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if fmt.Sprint(events) != "[pending:/m/a.avi outcome:1:converted]" {
		t.Fatalf("unexpected ledger sequence %v", events)
	}
}

func TestFailedConversionRecordsMessageWithoutRetry(t *testing.T) {
	ledger := &fakeLedger{}
	conv := &fakeConverter{fail: map[string]error{"/m/bad.avi": errors.New("ffmpeg: exit status 1")}}
	published := 0
	q := queue.New(ledger, conv, queue.PublisherFunc(func(context.Context, *queue.Job) error {
		published++
		return nil
	}), nil)
	ctx := context.Background()

	bad := queue.NewJob("/m/bad.avi", "/m/bad.mp4", 1)
	good := queue.NewJob("/m/good.avi", "/m/good.mp4", 2)
	for _, job := range []*queue.Job{bad, good} {
		if _, err := q.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	q.Close()
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if bad.Status() != queue.StatusFailed || bad.Error() != "ffmpeg: exit status 1" {
		t.Fatalf("unexpected failed job state %s %q", bad.Status(), bad.Error())
	}
	if good.Status() != queue.StatusConverted || !good.Done() {
		t.Fatalf("expected good job converted, got %s", good.Status())
	}
	if len(conv.calls) != 2 {
		t.Fatalf("expected no retry, got calls %v", conv.calls)
	}
	if published != 1 {
		t.Fatalf("expected only the success to publish, got %d", published)
	}
	if ledger.outcomes[0].status != queue.StatusFailed || ledger.outcomes[0].message != "ffmpeg: exit status 1" {
		t.Fatalf("unexpected failed outcome %+v", ledger.outcomes[0])
	}
	stats := q.Stats()
	if stats.Failed != 1 || stats.Converted != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPublishFailureIsCounted(t *testing.T) {
	q := queue.New(&fakeLedger{}, &fakeConverter{}, queue.PublisherFunc(func(context.Context, *queue.Job) error {
		return errors.New("sftp: connection lost")
	}), nil)
	ctx := context.Background()
	job := queue.NewJob("/m/a.avi", "/m/a.mp4", 0)
	if _, err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	q.Close()
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if job.Status() != queue.StatusConverted {
		t.Fatalf("expected converted status, got %s", job.Status())
	}
	if q.Stats().PublishFailed != 1 {
		t.Fatalf("expected publish failure counted, got %+v", q.Stats())
	}
}

func TestWaitJoinsConcurrentDrain(t *testing.T) {
	conv := &fakeConverter{gate: make(chan struct{}), started: make(chan string, 2)}
	q := queue.New(&fakeLedger{}, conv, nil, nil)
	ctx := context.Background()

	drainErr := make(chan error, 1)
	go func() { drainErr <- q.Drain(ctx) }()

	for _, in := range []string{"/m/1.avi", "/m/2.avi"} {
		if _, err := q.Enqueue(ctx, queue.NewJob(in, in+".mp4", 0)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Wait to block while jobs are in flight, got %v", err)
	}

	<-conv.started
	if err := q.Drain(ctx); !errors.Is(err, queue.ErrDraining) {
		t.Fatalf("expected ErrDraining for second drain, got %v", err)
	}

	q.Close()
	close(conv.gate)
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := <-drainErr; err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if q.Stats().Converted != 2 {
		t.Fatalf("unexpected stats %+v", q.Stats())
	}
}

func TestDrainStopsOnCancel(t *testing.T) {
	q := queue.New(&fakeLedger{}, &fakeConverter{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Drain(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEnqueueRejectsEmptyKey(t *testing.T) {
	q := queue.New(&fakeLedger{}, &fakeConverter{}, nil, nil)
	if _, err := q.Enqueue(context.Background(), queue.NewJob("  ", "/m/a.mp4", 0)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestQueueOverCatalogLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat, st := testsupport.NewCatalog(t, cfg, "control")
	ctx := context.Background()

	conv := &fakeConverter{fail: map[string]error{"/m/b.avi": errors.New("no video stream")}}
	q := queue.New(cat, conv, nil, nil)
	for _, in := range []string{"/m/a.avi", "/m/b.avi"} {
		if _, err := q.Enqueue(ctx, queue.NewJob(in, in+".mp4", 0)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	q.Close()
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	rows, err := st.ListConversions(ctx, "", "control")
	if err != nil {
		t.Fatalf("ListConversions: %v", err)
	}
	byInput := map[string]catalog.Conversion{}
	for _, row := range rows {
		byInput[row.OriginalFilename] = row
	}
	if byInput["/m/a.avi"].Status != catalog.ConversionConverted {
		t.Fatalf("unexpected row for a: %+v", byInput["/m/a.avi"])
	}
	if byInput["/m/b.avi"].Status != catalog.ConversionFailed || byInput["/m/b.avi"].ErrorMessage != "no video stream" {
		t.Fatalf("unexpected row for b: %+v", byInput["/m/b.avi"])
	}
}
