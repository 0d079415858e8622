package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/app"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/platform/rabbitmq"
)

// AnswerFlusher invalidates cached answers once the indexed corpus has
// changed.
type AnswerFlusher interface {
	Flush(ctx context.Context) error
}

// IngestWorker consumes ingestion jobs and drives documents through the
// pipeline. Running ingestion off the request path keeps uploads fast:
// the handler returns as soon as the job is queued, and the client polls
// the document status.
type IngestWorker struct {
	conn      *amqp.Connection
	svc       *app.IngestService
	flusher   AnswerFlusher // may be nil
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, svc *app.IngestService, flusher AnswerFlusher, queueName string) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		svc:       svc,
		flusher:   flusher,
		queueName: queueName,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	// One document at a time: ingestion is the slow path and must not
	// starve concurrent queries of embedding backend capacity.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume ingest queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job rabbitmq.IngestJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Printf("worker decode ingest job failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.svc.Run(ctx, job.DocumentID); err != nil {
		// The failure is already recorded on the document row; the job
		// itself is done.
		log.Printf("worker ingest document %s failed: %v", job.DocumentID, err)
	} else if w.flusher != nil {
		if err := w.flusher.Flush(ctx); err != nil {
			log.Printf("worker flush answer cache failed: %v", err)
		}
	}
	_ = d.Ack(false)
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
