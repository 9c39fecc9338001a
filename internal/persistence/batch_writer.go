package persistence

import (
	"database/sql"
	"log"
	"sync"
	"time"
)

// WriteOp represents one buffered database write.
type WriteOp struct {
	Query string
	Args  []any
}

// BatchWriter coalesces candle archive writes into transactions so the
// ingestion path never blocks on per-row commits.
type BatchWriter struct {
	db          *sql.DB
	buffer      []WriteOp
	mu          sync.Mutex
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewBatchWriter creates a batch writer.
// maxSize: max operations before auto-flush
// interval: time-based flush interval
func NewBatchWriter(db *sql.DB, maxSize int, interval time.Duration) *BatchWriter {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bw := &BatchWriter{
		db:          db,
		buffer:      make([]WriteOp, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.backgroundFlush()

	return bw
}

// WriteQuery buffers one write operation.
func (bw *BatchWriter) WriteQuery(query string, args ...any) {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, WriteOp{Query: query, Args: args})
	shouldFlush := len(bw.buffer) >= bw.maxSize
	bw.mu.Unlock()

	if shouldFlush {
		if err := bw.Flush(); err != nil {
			log.Printf("batch writer: size-triggered flush error: %v", err)
		}
	}
}

// Flush immediately writes all buffered operations to the database.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	ops := bw.buffer
	bw.buffer = make([]WriteOp, 0, bw.maxSize)
	bw.mu.Unlock()

	tx, err := bw.db.Begin()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if _, err := tx.Exec(op.Query, op.Args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (bw *BatchWriter) backgroundFlush() {
	defer bw.wg.Done()
	ticker := time.NewTicker(bw.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := bw.Flush(); err != nil {
				log.Printf("batch writer: background flush error: %v", err)
			}
		case <-bw.done:
			if err := bw.Flush(); err != nil {
				log.Printf("batch writer: final flush error: %v", err)
			}
			return
		}
	}
}

// Pending returns the number of buffered operations.
func (bw *BatchWriter) Pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Close flushes remaining writes and stops the background loop.
func (bw *BatchWriter) Close() error {
	close(bw.done)
	bw.wg.Wait()
	return nil
}
