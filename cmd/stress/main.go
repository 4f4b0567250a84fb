// FILE: cmd/stress/main.go
package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lumenforge/tagpipe"
)

const (
	totalBursts    = 100
	logsPerBurst   = 500
	maxMessageSize = 10000
	numWorkers     = 500
)

var tags = []string{"LOG_DEBUG", "LOG_INFO", "LOG_WARN", "LOG_ERROR"}

var dispatcher *log.Dispatcher

func generateRandomMessage(size int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "
	var sb strings.Builder
	sb.Grow(size)
	for i := 0; i < size; i++ {
		sb.WriteByte(chars[rand.Intn(len(chars))])
	}
	return sb.String()
}

// logBurst simulates a burst of logging activity from one source.
func logBurst(burstID int) {
	source := fmt.Sprintf("worker-%d", burstID%numWorkers)
	for i := 0; i < logsPerBurst; i++ {
		tag := tags[rand.Intn(len(tags))]
		msgSize := rand.Intn(maxMessageSize) + 10
		payload := fmt.Sprintf("%s bst=%d seq=%d rnd=%d", generateRandomMessage(msgSize), burstID, i, rand.Int63())
		dispatcher.Enqueue(source, []string{tag}, payload)
	}
}

func worker(burstChan chan int, wg *sync.WaitGroup, completedBursts *atomic.Int64) {
	defer wg.Done()
	for burstID := range burstChan {
		logBurst(burstID)
		completed := completedBursts.Add(1)
		if completed%10 == 0 || completed == totalBursts {
			fmt.Printf("\rProgress: %d/%d bursts completed", completed, totalBursts)
		}
	}
}

func main() {
	fmt.Println("--- Pipeline Stress Test ---")

	logsDir := "./logs"
	_ = os.RemoveAll(logsDir)

	var err error
	dispatcher, err = log.NewBuilder().
		Level("LOG_DEBUG").
		QueueCapacity(8192).
		Ordered(false).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build dispatcher: %v\n", err)
		os.Exit(1)
	}

	if _, err := dispatcher.RegisterSizeRotated(logsDir+"/stress.log", 1<<20, 20, true); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register file sink: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Dispatcher initialized. Logs will be written to: %s\n", logsDir)

	fmt.Printf("Starting stress test: %d workers, %d bursts, %d logs/burst.\n",
		numWorkers, totalBursts, logsPerBurst)
	fmt.Println("Watch Dropped() for queue pressure under this load.")
	fmt.Println("Press Ctrl+C to stop early.")

	burstChan := make(chan int, numWorkers)
	var wg sync.WaitGroup
	completedBursts := atomic.Int64{}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stopChan := make(chan struct{})

	go func() {
		<-sigChan
		fmt.Println("\n[Signal Received] Stopping burst generation...")
		close(stopChan)
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(burstChan, &wg, &completedBursts)
	}

	startTime := time.Now()
	for i := 1; i <= totalBursts; i++ {
		select {
		case burstChan <- i:
		case <-stopChan:
			fmt.Println("[Signal Received] Halting burst submission.")
			goto endLoop
		}
	}
endLoop:
	close(burstChan)

	fmt.Println("\nWaiting for workers to finish...")
	wg.Wait()
	duration := time.Since(startTime)
	finalCompleted := completedBursts.Load()

	fmt.Printf("\n--- Test Finished ---")
	fmt.Printf("\nCompleted %d/%d bursts in %v\n", finalCompleted, totalBursts, duration.Round(time.Millisecond))
	if finalCompleted > 0 && duration.Seconds() > 0 {
		logsPerSec := float64(finalCompleted*logsPerBurst) / duration.Seconds()
		fmt.Printf("Approximate Logs/sec: %.2f\n", logsPerSec)
	}

	fmt.Println("Shutting down dispatcher (allowing up to 10s)...")
	if err := dispatcher.Shutdown(10 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "dispatcher shutdown error: %v\n", err)
	} else {
		fmt.Println("Dispatcher shutdown complete.")
	}

	fmt.Printf("Check log files in '%s'.\n", logsDir)
}
