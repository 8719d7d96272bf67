package activitylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/V4T54L/tctk/internal/adapter/metrics"
	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/pkg/serialize"
)

const (
	filePrefix    = "activity_"
	fileSuffix    = ".json"
	errorSinkName = "errors.log"
	filePerm      = 0644
	dirPerm       = 0755

	DefaultFlushEvery  = time.Minute
	DefaultMaxFileSize = 5 << 20
)

// Options configures a Persistence.
type Options struct {
	Dir         string
	FlushEvery  time.Duration
	MaxFileSize int64

	// HandleSignals registers the process signal handlers on construction.
	HandleSignals bool
	// OnClose runs after a close-class signal has been persisted. When nil
	// the process exits with 128+signal.
	OnClose func(os.Signal)

	Logger     *slog.Logger
	Metrics    *metrics.BotMetrics
	Serializer *serialize.Serializer
	Now        func() time.Time
}

// Persistence buffers activity records and writes them to rotating
// activity_<start_time>.json files. Every write appends one JSON object.
type Persistence struct {
	dir         string
	flushEvery  time.Duration
	maxFileSize int64
	logger      *slog.Logger
	metrics     *metrics.BotMetrics
	serializer  *serialize.Serializer
	now         func() time.Time
	sink        *ErrorSink

	mu        sync.Mutex
	current   domain.LogFile
	path      string
	prevStart int64
	closed    bool
	fatal     error

	signals      *signalWatcher
	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates the log directory, writes the INIT_FILE record of a fresh
// activity file and, if requested, starts intercepting signals.
func New(opts Options) (*Persistence, error) {
	if opts.Dir == "" {
		return nil, errors.New("activity log directory is required")
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Serializer == nil {
		opts.Serializer = serialize.New(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(opts.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create activity log directory %s: %w", opts.Dir, err)
	}

	p := &Persistence{
		dir:         opts.Dir,
		flushEvery:  opts.FlushEvery,
		maxFileSize: opts.MaxFileSize,
		logger:      opts.Logger.With("component", "activity_log"),
		metrics:     opts.Metrics,
		serializer:  opts.Serializer,
		now:         opts.Now,
		sink:        NewErrorSink(filepath.Join(opts.Dir, errorSinkName)),
	}

	if err := p.NewFile(); err != nil {
		return nil, err
	}
	if opts.HandleSignals {
		p.watchSignals(opts.OnClose)
	}
	return p, nil
}

// Add appends a record to the current buffer. When more than FlushEvery has
// passed since the last write, the buffer is flushed first.
func (p *Persistence) Add(kind string, timestamp float64, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.usableLocked(); err != nil {
		return err
	}
	if p.now().Sub(time.Unix(p.current.LastUpdatedTime, 0)) > p.flushEvery {
		if err := p.flushLocked(); err != nil {
			return err
		}
	}

	p.current.Activity = append(p.current.Activity, domain.ActivityRecord{
		Kind:      kind,
		Timestamp: timestamp,
		Payload:   p.serializer.Serialize(payload),
	})
	if p.metrics != nil {
		p.metrics.ActivityRecordsTotal.Inc()
		p.metrics.ActivityPending.Set(float64(len(p.current.Activity)))
	}
	return nil
}

// Flush writes the buffer with REGULAR_UPDATE and clears it. If the file
// grew beyond MaxFileSize it is closed with MAX_SIZE_REACHED and a new file
// is started.
func (p *Persistence) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.usableLocked(); err != nil {
		return err
	}
	return p.flushLocked()
}

// FlushIfDue flushes when FlushEvery has passed since the last write.
func (p *Persistence) FlushIfDue() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.usableLocked(); err != nil {
		return err
	}
	if p.now().Sub(time.Unix(p.current.LastUpdatedTime, 0)) < p.flushEvery {
		return nil
	}
	return p.flushLocked()
}

// NewFile discards the in-memory state and starts a new activity file.
func (p *Persistence) NewFile() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newFileLocked()
}

// Persist stamps end_time and writes the buffer with the current update
// reason. Calling it twice writes the final record twice.
func (p *Persistence) Persist() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.persistLocked()
}

// Shutdown records reason (and sig, for OS_SIGNAL) and performs the terminal
// write. Only the first call writes; later calls return the first result.
func (p *Persistence) Shutdown(reason domain.UpdateReason, sig os.Signal) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		p.current.UpdateReason = reason
		p.current.OSSignal = ""
		if reason == domain.ReasonOSSignal && sig != nil {
			p.current.OSSignal = SignalName(sig)
		}
		p.shutdownErr = p.persistLocked()
		p.closed = true
		p.logger.Info("activity log closed", "reason", reason, "os_signal", p.current.OSSignal, "path", p.path)
	})
	if p.signals != nil {
		p.signals.stop()
	}
	return p.shutdownErr
}

// Close is Shutdown with NORMAL_SERVICE_SHUTDOWN.
func (p *Persistence) Close() error {
	return p.Shutdown(domain.ReasonNormalServiceShutdown, nil)
}

// Run flushes on a timer until ctx is done, so quiet channels still get
// periodic writes. The timer is re-armed from the last write, so a flush
// triggered by Add pushes the next timed flush back. It returns early only
// on a fatal error.
func (p *Persistence) Run(ctx context.Context) error {
	timer := time.NewTimer(p.untilDue())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			err := p.FlushIfDue()
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrPersistenceClosed):
				return nil
			case errors.Is(err, domain.ErrLogFileMissing):
				p.logger.Error("activity log file disappeared", "error", err)
				return err
			default:
				p.logger.Error("timed flush failed", "error", err)
			}
			timer.Reset(p.untilDue())
		}
	}
}

// untilDue is the time left until the buffer is FlushEvery old, clamped to
// (0, FlushEvery].
func (p *Persistence) untilDue() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := time.Unix(p.current.LastUpdatedTime, 0).Add(p.flushEvery).Sub(p.now())
	if d <= 0 || d > p.flushEvery {
		return p.flushEvery
	}
	return d
}

// Status describes the current file.
func (p *Persistence) Status() domain.ActivityStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.ActivityStatus{
		Path:            p.path,
		StartTime:       p.current.StartTime,
		LastUpdatedTime: p.current.LastUpdatedTime,
		UpdateReason:    p.current.UpdateReason,
		Pending:         len(p.current.Activity),
		Closed:          p.closed,
	}
}

// Dir is the logs root.
func (p *Persistence) Dir() string {
	return p.dir
}

// ErrorSink is the auxiliary plain-text sink.
func (p *Persistence) ErrorSink() *ErrorSink {
	return p.sink
}

func (p *Persistence) usableLocked() error {
	if p.fatal != nil {
		return p.fatal
	}
	if p.closed {
		return domain.ErrPersistenceClosed
	}
	return nil
}

func (p *Persistence) flushLocked() error {
	now := p.now()
	p.current.LastUpdatedTime = now.Unix()
	p.current.UpdateReason = domain.ReasonRegularUpdate
	if err := p.writeLocked(); err != nil {
		return err
	}
	p.clearLocked()

	full, err := p.isFileMaxSizeLocked()
	if err != nil {
		return err
	}
	if !full {
		return nil
	}

	end := now.Unix()
	p.current.UpdateReason = domain.ReasonMaxSizeReached
	p.current.EndTime = &end
	if err := p.writeLocked(); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ActivityRotationsTotal.Inc()
	}
	p.logger.Info("activity file reached max size, rotating", "path", p.path, "max_bytes", p.maxFileSize)
	return p.newFileLocked()
}

func (p *Persistence) persistLocked() error {
	if p.fatal != nil {
		return p.fatal
	}
	now := p.now().Unix()
	p.current.LastUpdatedTime = now
	p.current.EndTime = &now
	if err := p.writeLocked(); err != nil {
		return err
	}
	p.clearLocked()
	return nil
}

func (p *Persistence) newFileLocked() error {
	if err := os.MkdirAll(p.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create activity log directory %s: %w", p.dir, err)
	}

	start := p.now().Unix()
	if start <= p.prevStart {
		start = p.prevStart + 1
	}
	var path string
	for {
		path = filepath.Join(p.dir, FileName(start))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
		if errors.Is(err, fs.ErrExist) {
			start++
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create activity file %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close activity file %s: %w", path, err)
		}
		break
	}

	p.path = path
	p.prevStart = start
	p.current = domain.LogFile{
		StartTime:       start,
		LastUpdatedTime: start,
		UpdateReason:    domain.ReasonInitFile,
		Activity:        []domain.ActivityRecord{},
	}
	p.logger.Info("started activity file", "path", path)
	return p.writeLocked()
}

// writeLocked appends the current LogFile to the current path. The file
// itself is never recreated here: a missing file is fatal.
func (p *Persistence) writeLocked() error {
	if err := os.MkdirAll(p.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create activity log directory %s: %w", p.dir, err)
	}

	snapshot := p.current
	if snapshot.Activity == nil {
		snapshot.Activity = []domain.ActivityRecord{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal activity snapshot: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_WRONLY, filePerm)
	if errors.Is(err, fs.ErrNotExist) {
		p.fatal = fmt.Errorf("%w: %s", domain.ErrLogFileMissing, p.path)
		return p.fatal
	}
	if err != nil {
		return fmt.Errorf("failed to open activity file %s: %w", p.path, err)
	}
	n, err := f.Write(data)
	if err == nil && snapshot.EndTime != nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write activity file %s: %w", p.path, err)
	}

	if p.metrics != nil {
		p.metrics.ActivityFlushesTotal.WithLabelValues(string(snapshot.UpdateReason)).Inc()
		p.metrics.ActivityBytesTotal.Add(float64(n))
	}
	p.logger.Debug("wrote activity snapshot", "path", p.path, "reason", snapshot.UpdateReason, "records", len(snapshot.Activity), "bytes", n)
	return nil
}

func (p *Persistence) clearLocked() {
	p.current.Activity = []domain.ActivityRecord{}
	if p.metrics != nil {
		p.metrics.ActivityPending.Set(0)
	}
}

func (p *Persistence) isFileMaxSizeLocked() (bool, error) {
	info, err := os.Stat(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		p.fatal = fmt.Errorf("%w: %s", domain.ErrLogFileMissing, p.path)
		return false, p.fatal
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat activity file %s: %w", p.path, err)
	}
	return info.Size() > p.maxFileSize, nil
}
