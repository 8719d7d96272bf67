package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/V4T54L/tctk/internal/adapter/repository/activitylog"
)

func listActivity(w io.Writer, dir string) error {
	files, err := activitylog.ListLogFiles(dir)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTARTED\tSIZE")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", f.Name, time.Unix(f.StartTime, 0).Format(time.DateTime), f.Size)
	}
	return tw.Flush()
}

// catActivity prints one JSON document per line.
func catActivity(w io.Writer, dir string, start int64, records bool) error {
	snapshots, err := activitylog.ReadLogFile(filepath.Join(dir, activitylog.FileName(start)))
	if err != nil && len(snapshots) == 0 {
		return err
	}

	enc := json.NewEncoder(w)
	if records {
		for _, r := range activitylog.Records(snapshots) {
			if encErr := enc.Encode(r); encErr != nil {
				return encErr
			}
		}
	} else {
		for _, s := range snapshots {
			if encErr := enc.Encode(s); encErr != nil {
				return encErr
			}
		}
	}
	// a truncated tail is reported after what could be read
	return err
}
