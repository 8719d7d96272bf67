package activitylog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/V4T54L/tctk/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestPersistence(t *testing.T, flushEvery time.Duration, maxFileSize int64) (*Persistence, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	p, err := New(Options{
		Dir:         t.TempDir(),
		FlushEvery:  flushEvery,
		MaxFileSize: maxFileSize,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to create Persistence: %v", err)
	}
	return p, clock
}

func readCurrent(t *testing.T, p *Persistence) []domain.LogFile {
	t.Helper()
	snapshots, err := ReadLogFile(p.Status().Path)
	if err != nil {
		t.Fatalf("failed to read activity file: %v", err)
	}
	return snapshots
}

func TestNew_WritesInitFile(t *testing.T) {
	p, clock := setupTestPersistence(t, time.Minute, 1<<20)

	status := p.Status()
	if status.StartTime != clock.Now().Unix() {
		t.Errorf("expected start time %d, got %d", clock.Now().Unix(), status.StartTime)
	}
	if !strings.HasSuffix(status.Path, FileName(status.StartTime)) {
		t.Errorf("unexpected file path %s", status.Path)
	}

	snapshots := readCurrent(t, p)
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	init := snapshots[0]
	if init.UpdateReason != domain.ReasonInitFile {
		t.Errorf("expected INIT_FILE, got %s", init.UpdateReason)
	}
	if len(init.Activity) != 0 || init.EndTime != nil || init.OSSignal != "" {
		t.Errorf("unexpected initial snapshot %+v", init)
	}
}

func TestFlush_ClearsBuffer(t *testing.T) {
	p, _ := setupTestPersistence(t, time.Minute, 1<<20)

	if err := p.Add("message", 1.5, map[string]any{"text": "hi"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := p.Add("join", 2.5, map[string]any{"user_name": "bob"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := p.Status().Pending; got != 2 {
		t.Fatalf("expected 2 pending records, got %d", got)
	}

	if err := p.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := p.Status().Pending; got != 0 {
		t.Errorf("expected empty buffer after flush, got %d", got)
	}

	// an empty flush still writes a record
	if err := p.Flush(); err != nil {
		t.Fatalf("empty flush: %v", err)
	}

	snapshots := readCurrent(t, p)
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snapshots))
	}
	flushed := snapshots[1]
	if flushed.UpdateReason != domain.ReasonRegularUpdate {
		t.Errorf("expected REGULAR_UPDATE, got %s", flushed.UpdateReason)
	}
	if len(flushed.Activity) != 2 || flushed.Activity[0].Kind != "message" || flushed.Activity[1].Kind != "join" {
		t.Errorf("unexpected activity %+v", flushed.Activity)
	}
	if flushed.Activity[0].Timestamp != 1.5 {
		t.Errorf("expected timestamp 1.5, got %v", flushed.Activity[0].Timestamp)
	}
	if len(snapshots[2].Activity) != 0 {
		t.Errorf("expected empty second flush, got %+v", snapshots[2].Activity)
	}
}

func TestAdd_TimeTriggeredFlush(t *testing.T) {
	p, clock := setupTestPersistence(t, 60*time.Second, 1<<20)

	if err := p.Add("message", 1, "first"); err != nil {
		t.Fatalf("add: %v", err)
	}

	// exactly the interval is not enough
	clock.Advance(60 * time.Second)
	if err := p.Add("message", 2, "second"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := len(readCurrent(t, p)); got != 1 {
		t.Fatalf("expected no flush yet, file has %d snapshots", got)
	}

	clock.Advance(time.Second)
	if err := p.Add("message", 3, "third"); err != nil {
		t.Fatalf("add: %v", err)
	}

	snapshots := readCurrent(t, p)
	if len(snapshots) != 2 {
		t.Fatalf("expected exactly one flush, file has %d snapshots", len(snapshots))
	}
	flushed := snapshots[1]
	if len(flushed.Activity) != 2 {
		t.Errorf("expected the two earlier records to be flushed, got %d", len(flushed.Activity))
	}
	if flushed.LastUpdatedTime != clock.Now().Unix() {
		t.Errorf("expected last_updated_time %d, got %d", clock.Now().Unix(), flushed.LastUpdatedTime)
	}
	if got := p.Status().Pending; got != 1 {
		t.Errorf("expected the new record to remain buffered, got %d", got)
	}
}

func TestFlushIfDue(t *testing.T) {
	p, clock := setupTestPersistence(t, time.Minute, 1<<20)

	if err := p.FlushIfDue(); err != nil {
		t.Fatalf("flush if due: %v", err)
	}
	if got := len(readCurrent(t, p)); got != 1 {
		t.Fatalf("expected no timed flush before the interval, got %d snapshots", got)
	}

	clock.Advance(time.Minute)
	if err := p.FlushIfDue(); err != nil {
		t.Fatalf("flush if due: %v", err)
	}
	if got := len(readCurrent(t, p)); got != 2 {
		t.Errorf("expected a timed flush, got %d snapshots", got)
	}
}

func TestFlush_RotatesAtMaxSize(t *testing.T) {
	p, _ := setupTestPersistence(t, time.Minute, 256)
	first := p.Status()

	if err := p.Add("message", 1, strings.Repeat("x", 300)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	second := p.Status()
	if second.StartTime <= first.StartTime {
		t.Fatalf("expected new start time > %d, got %d", first.StartTime, second.StartTime)
	}
	if second.Path == first.Path {
		t.Fatal("expected a new file after rotation")
	}

	old, err := ReadLogFile(first.Path)
	if err != nil {
		t.Fatalf("read old file: %v", err)
	}
	last := old[len(old)-1]
	if last.UpdateReason != domain.ReasonMaxSizeReached {
		t.Errorf("expected MAX_SIZE_REACHED, got %s", last.UpdateReason)
	}
	if last.EndTime == nil {
		t.Error("expected end_time on the closing record")
	}
	if got := len(Records(old)); got != 1 {
		t.Errorf("expected the record to be written once, got %d", got)
	}

	fresh := readCurrent(t, p)
	if len(fresh) != 1 || fresh[0].UpdateReason != domain.ReasonInitFile {
		t.Errorf("expected a fresh INIT_FILE snapshot, got %+v", fresh)
	}

	files, err := ListLogFiles(p.Dir())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || files[0].StartTime != first.StartTime || files[1].StartTime != second.StartTime {
		t.Errorf("unexpected files %+v", files)
	}
}

func TestNewFile_StartTimeStrictlyIncreases(t *testing.T) {
	p, _ := setupTestPersistence(t, time.Minute, 1<<20)

	seen := map[int64]bool{p.Status().StartTime: true}
	prev := p.Status().StartTime
	for i := 0; i < 3; i++ {
		if err := p.NewFile(); err != nil {
			t.Fatalf("new file: %v", err)
		}
		start := p.Status().StartTime
		if start <= prev || seen[start] {
			t.Fatalf("start time %d does not exceed %d", start, prev)
		}
		seen[start] = true
		prev = start
	}
}

func TestNewFile_RecreatesDirectory(t *testing.T) {
	p, _ := setupTestPersistence(t, time.Minute, 1<<20)

	if err := os.RemoveAll(p.Dir()); err != nil {
		t.Fatalf("remove dir: %v", err)
	}
	if err := p.NewFile(); err != nil {
		t.Fatalf("expected directory to be recreated, got %v", err)
	}
	if _, err := os.Stat(p.Status().Path); err != nil {
		t.Errorf("expected new file on disk: %v", err)
	}
}

func TestMissingFileIsFatal(t *testing.T) {
	p, _ := setupTestPersistence(t, time.Minute, 1<<20)

	if err := os.Remove(p.Status().Path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	err := p.Flush()
	if !errors.Is(err, domain.ErrLogFileMissing) {
		t.Fatalf("expected ErrLogFileMissing, got %v", err)
	}
	if err := p.Add("message", 1, nil); !errors.Is(err, domain.ErrLogFileMissing) {
		t.Errorf("expected the error to stick, got %v", err)
	}
	if _, statErr := os.Stat(p.Status().Path); !os.IsNotExist(statErr) {
		t.Error("the missing file must not be recreated")
	}
}

func TestShutdown_NormalExit(t *testing.T) {
	p, clock := setupTestPersistence(t, time.Minute, 1<<20)

	if err := p.Add("message", 1, "bye"); err != nil {
		t.Fatalf("add: %v", err)
	}
	clock.Advance(5 * time.Second)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	snapshots := readCurrent(t, p)
	if len(snapshots) != 2 {
		t.Fatalf("expected exactly one terminal write, got %d snapshots", len(snapshots))
	}
	final := snapshots[1]
	if final.UpdateReason != domain.ReasonNormalServiceShutdown {
		t.Errorf("expected NORMAL_SERVICE_SHUTDOWN, got %s", final.UpdateReason)
	}
	if final.EndTime == nil || *final.EndTime != clock.Now().Unix() {
		t.Errorf("unexpected end_time %v", final.EndTime)
	}
	if final.OSSignal != "" {
		t.Errorf("os_signal must be absent, got %q", final.OSSignal)
	}
	if len(final.Activity) != 1 {
		t.Errorf("expected buffered record in final write, got %d", len(final.Activity))
	}

	if err := p.Add("message", 2, "late"); !errors.Is(err, domain.ErrPersistenceClosed) {
		t.Errorf("expected ErrPersistenceClosed after shutdown, got %v", err)
	}
	if !p.Status().Closed {
		t.Error("expected status to report closed")
	}
}

func TestPersist_DuplicatesWhenCalledTwice(t *testing.T) {
	p, _ := setupTestPersistence(t, time.Minute, 1<<20)

	if err := p.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := p.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}
	snapshots := readCurrent(t, p)
	if len(snapshots) != 3 {
		t.Errorf("expected two terminal writes, got %d snapshots", len(snapshots))
	}
	for _, s := range snapshots[1:] {
		if s.EndTime == nil {
			t.Error("expected end_time on persisted snapshot")
		}
	}
}

func TestHandleSignal_ClosePath(t *testing.T) {
	p, _ := setupTestPersistence(t, time.Minute, 1<<20)
	if err := p.Add("message", 1, "pending"); err != nil {
		t.Fatalf("add: %v", err)
	}

	var closed []os.Signal
	hook := func(sig os.Signal) { closed = append(closed, sig) }

	p.handleSignal(syscall.SIGTERM, hook)
	p.handleSignal(syscall.SIGINT, hook)

	snapshots := readCurrent(t, p)
	if len(snapshots) != 2 {
		t.Fatalf("expected exactly one terminal write, got %d snapshots", len(snapshots))
	}
	final := snapshots[1]
	if final.UpdateReason != domain.ReasonOSSignal {
		t.Errorf("expected OS_SIGNAL, got %s", final.UpdateReason)
	}
	if final.OSSignal != SignalName(syscall.SIGTERM) {
		t.Errorf("expected os_signal %s, got %q", SignalName(syscall.SIGTERM), final.OSSignal)
	}
	if len(final.Activity) != 1 {
		t.Errorf("expected the pending record in the final write, got %d", len(final.Activity))
	}
	if len(closed) != 2 {
		t.Errorf("expected the close hook for every close signal, got %d calls", len(closed))
	}
}

func TestHandleSignal_HookRunsWhenPersistFails(t *testing.T) {
	p, _ := setupTestPersistence(t, time.Minute, 1<<20)
	if err := os.Remove(p.Status().Path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	called := false
	p.handleSignal(syscall.SIGTERM, func(os.Signal) { called = true })

	if !called {
		t.Error("expected the close hook to run even when persisting fails")
	}
	data, err := os.ReadFile(p.ErrorSink().Path())
	if err != nil {
		t.Fatalf("read error sink: %v", err)
	}
	if !strings.Contains(string(data), "failed to persist") {
		t.Errorf("expected failure in error sink, got %q", data)
	}
}

// panicOnce wraps a clock so that its first call panics.
func panicOnce(next func() time.Time) func() time.Time {
	fired := false
	return func() time.Time {
		if !fired {
			fired = true
			panic("clock exploded")
		}
		return next()
	}
}

func TestHandleSignal_ClosePanicIsRecovered(t *testing.T) {
	p, clock := setupTestPersistence(t, time.Minute, 1<<20)
	p.now = panicOnce(clock.Now)

	called := false
	p.handleSignal(syscall.SIGTERM, func(os.Signal) { called = true })

	if !called {
		t.Error("expected the close hook to run after a panic")
	}
	data, err := os.ReadFile(p.ErrorSink().Path())
	if err != nil {
		t.Fatalf("read error sink: %v", err)
	}
	if !strings.Contains(string(data), "close handler for "+SignalName(syscall.SIGTERM)+" panicked: clock exploded") {
		t.Errorf("expected the panic in the error sink, got %q", data)
	}
}

func TestRun(t *testing.T) {
	t.Run("timed flush then missing file", func(t *testing.T) {
		p, clock := setupTestPersistence(t, 20*time.Millisecond, 1<<20)
		if err := p.Add("message", 1, "quiet"); err != nil {
			t.Fatalf("add: %v", err)
		}

		done := runAsync(context.Background(), p)

		clock.Advance(time.Second)
		deadline := time.Now().Add(2 * time.Second)
		for p.Status().Pending != 0 {
			if time.Now().After(deadline) {
				t.Fatal("timed flush never happened")
			}
			time.Sleep(5 * time.Millisecond)
		}
		snapshots := readCurrent(t, p)
		if len(snapshots) != 2 || snapshots[1].UpdateReason != domain.ReasonRegularUpdate {
			t.Fatalf("expected INIT_FILE then REGULAR_UPDATE, got %+v", snapshots)
		}
		if len(snapshots[1].Activity) != 1 {
			t.Errorf("expected the buffered record in the timed flush, got %d", len(snapshots[1].Activity))
		}

		if err := os.Remove(p.Status().Path); err != nil {
			t.Fatalf("remove: %v", err)
		}
		clock.Advance(time.Second)
		select {
		case err := <-done:
			if !errors.Is(err, domain.ErrLogFileMissing) {
				t.Errorf("expected ErrLogFileMissing, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after the file disappeared")
		}
	})

	t.Run("returns quietly once closed", func(t *testing.T) {
		p, _ := setupTestPersistence(t, 10*time.Millisecond, 1<<20)
		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		select {
		case err := <-runAsync(context.Background(), p):
			if err != nil {
				t.Errorf("expected nil, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after close")
		}
	})

	t.Run("stops with the context", func(t *testing.T) {
		p, _ := setupTestPersistence(t, time.Minute, 1<<20)
		ctx, cancel := context.WithCancel(context.Background())
		done := runAsync(ctx, p)
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected nil, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run ignored cancellation")
		}
	})
}

func runAsync(ctx context.Context, p *Persistence) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return done
}

func TestUntilDue_FollowsLastWrite(t *testing.T) {
	p, clock := setupTestPersistence(t, 10*time.Second, 1<<20)

	if got := p.untilDue(); got != 10*time.Second {
		t.Errorf("fresh file: expected 10s, got %v", got)
	}
	clock.Advance(4 * time.Second)
	if got := p.untilDue(); got != 6*time.Second {
		t.Errorf("expected 6s left, got %v", got)
	}

	clock.Advance(7 * time.Second)
	if err := p.Add("message", 1, "late"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := p.untilDue(); got != 10*time.Second {
		t.Errorf("a flush from Add should restart the interval, got %v", got)
	}
}
