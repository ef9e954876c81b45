// Package worker provides async lead export from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/veriscript-health/clarity/internal/domain"
	"github.com/veriscript-health/clarity/internal/export"
)

// Worker exports classified submissions published on the event bus.
// It subscribes to the verdict topic, writes a lead record per
// submission, and announces each export on the lead-exported topic.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	writer *export.FileWriter

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new export worker. The repository is optional;
// when present, submissions missing from the message payload are
// refetched by ID before export.
func NewWorker(bus domain.EventBus, repo domain.Repository, writer *export.FileWriter) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		writer: writer,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the verdict topic and begins exporting.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicVerdictIssued, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("export worker started",
		"topic", domain.TopicVerdictIssued,
	)

	return nil
}

// ExportedLead is the payload published on the lead-exported topic.
type ExportedLead struct {
	SubmissionID string `json:"submissionId"`
	Path         string `json:"path"`
	Status       string `json:"status"`
	ExportedAt   int64  `json:"exportedAt"`
}

// handleMessage exports one classified submission.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var sub domain.Submission
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		slog.Error("failed to parse submission message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// A thin payload carries only the ID; hydrate from the repository.
	if sub.Verdict.Status == "" && sub.ID != "" && w.repo != nil {
		full, err := w.repo.GetSubmission(ctx, sub.ID)
		if err != nil {
			slog.Error("failed to load submission for export",
				"submission_id", sub.ID,
				"error", err,
			)
			return err
		}
		sub = *full
	}

	path, err := w.writer.Write(&sub)
	if err != nil {
		slog.Error("failed to write lead export",
			"submission_id", sub.ID,
			"error", err,
		)
		return err
	}

	lead := ExportedLead{
		SubmissionID: sub.ID,
		Path:         path,
		Status:       string(sub.Verdict.Status),
		ExportedAt:   time.Now().UnixNano(),
	}

	payload, _ := json.Marshal(lead)
	if err := w.bus.Publish(ctx, domain.TopicLeadExported, payload); err != nil {
		slog.Error("failed to publish lead exported event",
			"submission_id", sub.ID,
			"error", err,
		)
	}

	slog.Info("lead exported",
		"submission_id", sub.ID,
		"status", sub.Verdict.Status,
		"path", path,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("export worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
