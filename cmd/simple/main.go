// FILE: cmd/simple/main.go
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lumenforge/tagpipe"
)

func main() {
	fmt.Println("--- Simple Pipeline Example ---")

	d, err := log.NewBuilder().
		Level("LOG_DEBUG").
		QueueCapacity(1024).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build dispatcher: %v\n", err)
		os.Exit(1)
	}

	if _, err := d.RegisterSizeRotated("./simple_logs/app.log", 10<<20, 3, false); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register file sink: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Dispatcher initialized.")

	d.Enqueue("main", []string{"LOG_DEBUG"}, "This is a debug message. user_id=123")
	d.Enqueue("main", []string{"LOG_INFO"}, "Application starting...")
	d.Enqueue("main", []string{"LOG_WARN"}, "Potential issue detected. threshold=0.95")
	d.Enqueue("main", []string{"LOG_ERROR"}, "An error occurred! code=500")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.Enqueue("worker", []string{"LOG_INFO"}, fmt.Sprintf("Goroutine started id=%d", id))
			time.Sleep(time.Duration(50+id*50) * time.Millisecond)
			d.Enqueue("worker", []string{"LOG_INFO"}, fmt.Sprintf("Goroutine finished id=%d", id))
		}(i)
	}
	wg.Wait()
	fmt.Println("Goroutines finished.")

	fmt.Println("Shutting down dispatcher...")
	if err := d.Shutdown(2 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "dispatcher shutdown error: %v\n", err)
	} else {
		fmt.Println("Dispatcher shutdown complete.")
	}

	fmt.Println("--- Example Finished ---")
	fmt.Println("Check log files in './simple_logs'.")
}
