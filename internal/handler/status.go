package handler

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"tg-banshare/internal/logger"
	"tg-banshare/internal/metrics"
)

// Update counters
var (
	totalMessages          int64
	totalChatMemberUpdates int64
	totalMyChatMember      int64
	totalCallbackQueries   int64
	totalErrors            int64
	startTime              = time.Now()
)

// countUpdate records one received update.
func countUpdate(kind string) {
	metrics.TelegramUpdates.WithLabelValues(kind).Inc()
	switch kind {
	case "message":
		atomic.AddInt64(&totalMessages, 1)
	case "chat_member":
		atomic.AddInt64(&totalChatMemberUpdates, 1)
	case "my_chat_member":
		atomic.AddInt64(&totalMyChatMember, 1)
	case "callback_query":
		atomic.AddInt64(&totalCallbackQueries, 1)
	}
}

func countError() {
	atomic.AddInt64(&totalErrors, 1)
}

// GetProcessingStats returns the processing counters.
func GetProcessingStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime_seconds":            int64(time.Since(startTime).Seconds()),
		"total_messages":            atomic.LoadInt64(&totalMessages),
		"total_chat_member_updates": atomic.LoadInt64(&totalChatMemberUpdates),
		"total_my_chat_member":      atomic.LoadInt64(&totalMyChatMember),
		"total_callback_queries":    atomic.LoadInt64(&totalCallbackQueries),
		"total_errors":              atomic.LoadInt64(&totalErrors),
		"memory_usage_mb":           bToMb(m.Alloc),
		"sys_memory_mb":             bToMb(m.Sys),
		"gc_runs":                   m.NumGC,
		"goroutines":                runtime.NumGoroutine(),
	}
}

// StartStatusMonitoring logs the stats every interval until ctx ends.
func StartStatusMonitoring(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Infof("Processing stats: %+v", GetProcessingStats())
			}
		}
	}()
}

// bToMb converts bytes to MB
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// GetDetailedStatus returns a human readable status report (for debugging).
func GetDetailedStatus() string {
	stats := GetProcessingStats()
	return fmt.Sprintf(`
=== BanShare Processing Status ===
Uptime: %d seconds
Messages: %d
Chat Member Updates: %d
Bot Membership Updates: %d
Callback Queries: %d
Errors: %d
Memory Usage: %d MB
System Memory: %d MB
GC Runs: %d
Goroutines: %d
==================================
`,
		stats["uptime_seconds"],
		stats["total_messages"],
		stats["total_chat_member_updates"],
		stats["total_my_chat_member"],
		stats["total_callback_queries"],
		stats["total_errors"],
		stats["memory_usage_mb"],
		stats["sys_memory_mb"],
		stats["gc_runs"],
		stats["goroutines"],
	)
}
