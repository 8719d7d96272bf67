package activitylog

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"

	"github.com/V4T54L/tctk/internal/domain"
)

// signalWatcher owns the signal registration of one Persistence.
type signalWatcher struct {
	ch       chan os.Signal
	done     chan struct{}
	stopOnce sync.Once
}

// stop unregisters the handlers. It does not wait for the watcher
// goroutine, so it is safe to call from a handler.
func (w *signalWatcher) stop() {
	w.stopOnce.Do(func() {
		signal.Stop(w.ch)
		close(w.done)
	})
}

// watchSignals registers every catchable signal. Close-class signals persist
// the buffer with OS_SIGNAL and then call onClose; any other signal is only
// reported to the error sink.
func (p *Persistence) watchSignals(onClose func(os.Signal)) {
	if onClose == nil {
		onClose = exitOnSignal
	}
	w := &signalWatcher{
		ch:   make(chan os.Signal, 16),
		done: make(chan struct{}),
	}
	registered := 0
	for _, sig := range catchableSignals() {
		if notify(w.ch, sig) {
			registered++
		}
	}
	p.logger.Debug("registered signal handlers", "count", registered)
	p.signals = w

	go func() {
		for {
			select {
			case <-w.done:
				return
			case sig := <-w.ch:
				p.handleSignal(sig, onClose)
			}
		}
	}()
}

// notify registers sig, swallowing failures for signals the platform does
// not support.
func notify(ch chan os.Signal, sig os.Signal) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	signal.Notify(ch, sig)
	return true
}

func (p *Persistence) handleSignal(sig os.Signal, onClose func(os.Signal)) {
	if IsCloseSignal(sig) {
		p.closeSignal(sig, onClose)
		return
	}
	p.unknownSignal(sig)
}

func (p *Persistence) closeSignal(sig os.Signal, onClose func(os.Signal)) {
	defer onClose(sig)
	defer p.recoverHandler("close", sig)

	name := SignalName(sig)
	p.logger.Warn("received close signal, persisting activity", "signal", name)
	if err := p.Shutdown(domain.ReasonOSSignal, sig); err != nil {
		p.reportSink("close handler for %s failed to persist activity: %v", name, err)
	}
}

func (p *Persistence) unknownSignal(sig os.Signal) {
	defer p.recoverHandler("unknown", sig)

	name := SignalName(sig)
	if p.metrics != nil {
		p.metrics.UnknownSignalsTotal.WithLabelValues(name).Inc()
	}
	p.logger.Warn("received unhandled signal", "signal", name)
	p.reportSink("unknown signal %s received, activity not persisted", name)
}

func (p *Persistence) recoverHandler(path string, sig os.Signal) {
	if r := recover(); r != nil {
		p.reportSink("%s handler for %s panicked: %v\n%s", path, SignalName(sig), r, debug.Stack())
	}
}

func (p *Persistence) reportSink(format string, args ...any) {
	if err := p.sink.Printf(format, args...); err != nil {
		p.logger.Error("failed to write to error sink", "error", err, "message", fmt.Sprintf(format, args...))
	}
}

// IsCloseSignal reports whether sig triggers the persist-and-close path.
func IsCloseSignal(sig os.Signal) bool {
	for _, s := range closeSignals {
		if s == sig {
			return true
		}
	}
	return false
}

func exitOnSignal(sig os.Signal) {
	os.Exit(exitCode(sig))
}
