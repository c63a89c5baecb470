package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"tg-banshare/internal/logger"
	"tg-banshare/internal/metrics"
)

// RecoverWithStack recovers a panic and logs its stack. Used by background tasks.
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, debug.Stack())
	}
}

// RecoverWithStackAndExit recovers a panic in main, logs it and exits.
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, debug.Stack())
		logger.Sync()

		// give the logger time to flush to disk
		time.Sleep(time.Second)
		os.Exit(1)
	}
}

// Guard runs fn and turns a panic into an error so an update handler can
// report it instead of taking the process down.
func Guard(moduleName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			report(moduleName, r, debug.Stack())
			err = fmt.Errorf("panic in %s: %v", moduleName, r)
		}
	}()
	return fn()
}

// SafeGoroutine starts a goroutine that recovers from panics.
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

func report(moduleName string, r interface{}, stack []byte) {
	metrics.Panics.WithLabelValues(moduleName).Inc()

	logger.Errorf("PANIC in %s: %v", moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// also to stderr so it shows up in container logs
	fmt.Fprintf(os.Stderr, "[PANIC] %s - %s: %v\n", time.Now().Format("2006-01-02 15:04:05"), moduleName, r)

	logRuntimeInfo()
}

// logRuntimeInfo logs runtime info for debugging.
func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	logger.Errorf("runtime: go=%s goroutines=%d heap_alloc=%dKB heap_inuse=%dKB num_gc=%d",
		runtime.Version(),
		runtime.NumGoroutine(),
		m.HeapAlloc/1024,
		m.HeapInuse/1024,
		m.NumGC,
	)
}
