package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/V4T54L/tctk/internal/adapter/repository/activitylog"
	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/pkg/logger"
)

func main() {
	dir := flag.String("dir", "", "Activity log directory (default: a new temp dir)")
	concurrency := flag.Int("c", 4, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 500, "Records per second limit")
	maxSize := flag.Int64("max-size", 64<<10, "Rotate files above this many bytes")
	flushEvery := flag.Duration("flush", 2*time.Second, "Flush interval")
	flag.Parse()

	if *dir == "" {
		d, err := os.MkdirTemp("", "activity-load-")
		if err != nil {
			log.Fatalf("Failed to create temp dir: %v", err)
		}
		*dir = d
	}

	log.Printf("Starting activity load test in %s", *dir)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Max size: %d", *concurrency, *duration, *rps, *maxSize)

	p, err := activitylog.New(activitylog.Options{
		Dir:         *dir,
		FlushEvery:  *flushEvery,
		MaxFileSize: *maxSize,
		Logger:      logger.New("warn"),
	})
	if err != nil {
		log.Fatalf("Failed to open activity log: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	go p.Run(ctx)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	limiter := rate.NewLimiter(rate.Limit(*rps), 50)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				now := time.Now()
				payload := domain.ChatMessage{
					ID:   uuid.NewString(),
					Text: fmt.Sprintf("load test message from worker %d", workerID),
					User: domain.ChatUser{Name: fmt.Sprintf("worker%d", workerID)},
				}
				if err := p.Add(string(domain.EventMessage), float64(now.UnixNano())/1e9, payload); err != nil {
					errorCount.Add(1)
					continue
				}
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	if err := p.Close(); err != nil {
		log.Printf("Close failed: %v", err)
	}

	files, err := activitylog.ListLogFiles(*dir)
	if err != nil {
		log.Fatalf("Failed to list activity files: %v", err)
	}
	var records int
	for _, f := range files {
		snapshots, err := activitylog.ReadLogFile(f.Path)
		if err != nil {
			log.Printf("Failed to read %s: %v", f.Name, err)
		}
		records += len(activitylog.Records(snapshots))
	}

	total := successCount.Load() + errorCount.Load()
	log.Println("Load test finished.")
	log.Printf("Total Records: %d", total)
	log.Printf("Added: %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", float64(total)/duration.Seconds())
	log.Printf("Files: %d, Records on disk: %d", len(files), records)
}
