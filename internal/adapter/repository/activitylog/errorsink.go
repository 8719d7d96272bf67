package activitylog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrorSink appends plain-text diagnostic lines to a file.
type ErrorSink struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewErrorSink returns a sink writing to path. The file is created lazily.
func NewErrorSink(path string) *ErrorSink {
	return &ErrorSink{path: path, now: time.Now}
}

// Path is the sink file location.
func (s *ErrorSink) Path() string {
	return s.path
}

// Printf appends one timestamped line.
func (s *ErrorSink) Printf(format string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("failed to create error sink directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open error sink %s: %w", s.path, err)
	}
	defer f.Close()

	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	_, err = fmt.Fprintf(f, "%s %s\n", s.now().UTC().Format(time.RFC3339), line)
	return err
}
