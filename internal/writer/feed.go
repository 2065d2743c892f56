package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/broker-stream/internal/connection"
)

// FeedWriter consumes forwarded realtime messages and writes them to the
// feed_messages table.
type FeedWriter struct {
	cfg        WriterConfig
	instanceID string
	logger     *slog.Logger

	// Input from the multiplexer
	input <-chan connection.Message

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []feedRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewFeedWriter creates a new FeedWriter.
func NewFeedWriter(
	cfg WriterConfig,
	instanceID string,
	input <-chan connection.Message,
	db *pgxpool.Pool,
	logger *slog.Logger,
) *FeedWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedWriter{
		cfg:        cfg,
		instanceID: instanceID,
		input:      input,
		db:         db,
		logger:     logger,
		batch:      make([]feedRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming messages and writing to the database.
func (w *FeedWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("feed writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *FeedWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping feed writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("feed writer stopped")
	case <-ctx.Done():
		w.logger.Warn("feed writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *FeedWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input stream and accumulates batches.
func (w *FeedWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case msg, ok := <-w.input:
			if !ok {
				return
			}
			w.handleMessage(msg)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *FeedWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleMessage transforms and adds a message to the batch.
func (w *FeedWriter) handleMessage(msg connection.Message) {
	row := w.transform(msg)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a forwarded message to a feedRow.
func (w *FeedWriter) transform(msg connection.Message) feedRow {
	return feedRow{
		InstanceID: w.instanceID,
		Channel:    msg.Channel,
		ReceivedAt: msg.ReceivedAt.UnixMicro(),
		Payload:    msg.Data,
	}
}

// flush writes the current batch to the database.
func (w *FeedWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]feedRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed feed messages",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch.
func (w *FeedWriter) batchInsert(rows []feedRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO feed_messages (instance_id, channel, received_at, payload)
			VALUES ($1, $2, $3, $4)
		`, r.InstanceID, r.Channel, r.ReceivedAt, r.Payload)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
