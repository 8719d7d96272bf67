package activitylog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/V4T54L/tctk/internal/domain"
)

// FileName returns the activity file name for a start time.
func FileName(start int64) string {
	return filePrefix + strconv.FormatInt(start, 10) + fileSuffix
}

// ParseFileName extracts the start time from an activity file name.
func ParseFileName(name string) (int64, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	start, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix), 10, 64)
	if err != nil {
		return 0, false
	}
	return start, true
}

// ListLogFiles returns the activity files in dir, oldest first.
func ListLogFiles(dir string) ([]domain.ActivityFileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read activity log directory: %w", err)
	}

	var files []domain.ActivityFileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		start, ok := ParseFileName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, domain.ActivityFileInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			StartTime: start,
			Size:      info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].StartTime < files[j].StartTime })
	return files, nil
}

// ReadLogFile decodes every snapshot in an activity file. The file is a
// concatenation of JSON objects, not a single document. If the last object
// is truncated the snapshots before it are returned along with the error.
func ReadLogFile(path string) ([]domain.LogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity file %s: %w", path, err)
	}
	defer f.Close()
	return DecodeLogFiles(f)
}

// DecodeLogFiles decodes a stream of LogFile objects.
func DecodeLogFiles(r io.Reader) ([]domain.LogFile, error) {
	dec := json.NewDecoder(r)
	var snapshots []domain.LogFile
	for {
		var lf domain.LogFile
		err := dec.Decode(&lf)
		if errors.Is(err, io.EOF) {
			return snapshots, nil
		}
		if err != nil {
			return snapshots, fmt.Errorf("failed to decode activity snapshot %d: %w", len(snapshots)+1, err)
		}
		snapshots = append(snapshots, lf)
	}
}

// Records flattens the activity of all snapshots in write order.
func Records(snapshots []domain.LogFile) []domain.ActivityRecord {
	var out []domain.ActivityRecord
	for _, s := range snapshots {
		out = append(out, s.Activity...)
	}
	return out
}
