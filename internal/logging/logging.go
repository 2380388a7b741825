package logging

import (
	"log"
	"time"
)

// Infof logs a message under a bracketed module prefix, e.g. "[catalog] loaded 12 parcels".
func Infof(module, format string, args ...interface{}) {
	log.Printf("["+module+"] "+format, args...)
}

// Warnf logs a recoverable problem. The caller carries on without the failed item.
func Warnf(module, format string, args ...interface{}) {
	log.Printf("["+module+"] WARNING: "+format, args...)
}

// LogFetch logs one upstream document fetch.
func LogFetch(module, target string, duration time.Duration, size int) {
	log.Printf("[%s] fetched %s bytes=%d duration=%dms",
		module, target, size, duration.Milliseconds())
}

// LogError logs an error from an operation.
func LogError(module, operation string, err error) {
	log.Printf("[%s] %s error: %v", module, operation, err)
}

// LogBatch logs the outcome of a geometry batch.
func LogBatch(module string, requested, returned, fetched int, duration time.Duration) {
	log.Printf("[%s] batch requested=%d returned=%d fetched=%d in %dms",
		module, requested, returned, fetched, duration.Milliseconds())
}
