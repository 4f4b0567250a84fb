// FILE: heartbeat.go
package log

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// heartbeat periodically feeds the dispatcher's own operational
// counters back through itself, grounded in the teacher's proc/disk/sys
// heartbeat trio (heartbeat.go, timer.go) — generalized from a
// single-file Logger's stats to a Dispatcher's queue/registry counters
// and collapsed from three separate levels into one record per tick,
// since a tag-oriented pipeline has no fixed LevelProc/LevelDisk/LevelSys.
type heartbeat struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once

	sequence uint64
	start    time.Time
}

// StartHeartbeat begins emitting a self-diagnostic record every
// interval, tagged LOG_INFO and sourced "heartbeat", until StopHeartbeat
// or Shutdown is called. Calling it more than once is a no-op.
func (d *Dispatcher) StartHeartbeat(interval time.Duration) {
	d.hbMu.Lock()
	defer d.hbMu.Unlock()
	if d.hb != nil {
		return
	}
	hb := &heartbeat{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
		start:  time.Now(),
	}
	d.hb = hb
	go d.runHeartbeat(hb)
}

// StopHeartbeat halts the periodic self-diagnostic record. Safe to call
// even if StartHeartbeat was never called.
func (d *Dispatcher) StopHeartbeat() {
	d.hbMu.Lock()
	hb := d.hb
	d.hb = nil
	d.hbMu.Unlock()
	if hb == nil {
		return
	}
	hb.once.Do(func() {
		hb.ticker.Stop()
		close(hb.done)
	})
}

func (d *Dispatcher) runHeartbeat(hb *heartbeat) {
	for {
		select {
		case <-hb.done:
			return
		case <-hb.ticker.C:
			d.emitHeartbeat(hb)
		}
	}
}

// emitHeartbeat renders one self-diagnostic line and feeds it back
// through Enqueue, the same ingress path any caller's record takes.
func (d *Dispatcher) emitHeartbeat(hb *heartbeat) {
	hb.sequence++

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	payload := fmt.Sprintf(
		"sequence=%d uptime=%s queue_pending=%d queue_dropped=%d sinks=%d alloc_mb=%.2f sys_mb=%.2f num_gc=%d num_goroutine=%d",
		hb.sequence,
		time.Since(hb.start).Round(time.Second),
		d.RequestsRemaining(),
		d.queue.Dropped(),
		d.registry.count(),
		float64(mem.Alloc)/(1024*1024),
		float64(mem.Sys)/(1024*1024),
		mem.NumGC,
		runtime.NumGoroutine(),
	)

	d.Enqueue("heartbeat", []string{"LOG_INFO"}, payload)
}
