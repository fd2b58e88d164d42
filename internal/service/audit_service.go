package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/formador-scheduler/internal/models"
	"github.com/noah-isme/formador-scheduler/pkg/jobs"
)

const auditJobType = "audit"

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type auditPublisher interface {
	PublishJSON(ctx context.Context, key string, payload interface{}, headers map[string]string) error
}

// AuditEntry is one auditable decision.
type AuditEntry struct {
	Action     string
	Resource   string
	ResourceID string
	Payload    interface{}
}

// AuditConfig tunes the delivery queue.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// AuditService records decisions asynchronously into postgres and, when configured, Kafka.
// Deliveries are retried by the queue; the postgres insert ignores ids it already stored.
type AuditService struct {
	store     auditStore
	publisher auditPublisher
	queue     *jobs.Queue
	metrics   *MetricsService
	clock     Clock
	logger    *zap.Logger
}

// NewAuditService constructs the service. publisher may be nil.
func NewAuditService(store auditStore, publisher auditPublisher, metrics *MetricsService, clock Clock, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	svc := &AuditService{store: store, publisher: publisher, metrics: metrics, clock: clock, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending records and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record builds an audit log for the actor on ctx and hands it to the queue. When the queue is
// full or not running the record is delivered inline instead of being dropped.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) error {
	log, err := s.build(ctx, entry)
	if err != nil {
		return err
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: log.ID, Type: auditJobType, Payload: log}); err != nil {
		s.metrics.RecordAudit("queue", err)
		if errors.Is(err, jobs.ErrQueueFull) {
			s.logger.Warn("audit queue full, writing inline", zap.String("action", log.Action))
		}
		return s.deliver(ctx, log)
	}
	return nil
}

func (s *AuditService) build(ctx context.Context, entry AuditEntry) (*models.AuditLog, error) {
	payload := []byte("{}")
	if entry.Payload != nil {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal audit payload: %w", err)
		}
		payload = raw
	}
	actor := ActorFromContext(ctx)
	log := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    entry.Action,
		Resource:  entry.Resource,
		Payload:   payload,
		RequestID: actor.RequestID,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		CreatedAt: s.clock.Now().UTC(),
	}
	if actor.UserID != "" {
		userID := actor.UserID
		log.UserID = &userID
	}
	if entry.ResourceID != "" {
		resourceID := entry.ResourceID
		log.ResourceID = &resourceID
	}
	return log, nil
}

func (s *AuditService) process(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Error("unexpected audit job payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.deliver(ctx, log)
}

func (s *AuditService) deliver(ctx context.Context, log *models.AuditLog) error {
	err := s.store.Create(ctx, log)
	s.metrics.RecordAudit("postgres", err)
	if err != nil {
		return fmt.Errorf("store audit log: %w", err)
	}
	if s.publisher == nil {
		return nil
	}
	err = s.publisher.PublishJSON(ctx, log.ID, auditMessageFrom(log), map[string]string{
		"action":     log.Action,
		"request_id": log.RequestID,
	})
	s.metrics.RecordAudit("kafka", err)
	if err != nil {
		return fmt.Errorf("publish audit log: %w", err)
	}
	return nil
}

type auditMessage struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID *string         `json:"resource_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	RequestID  string          `json:"request_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func auditMessageFrom(log *models.AuditLog) auditMessage {
	return auditMessage{
		ID:         log.ID,
		UserID:     log.UserID,
		Action:     log.Action,
		Resource:   log.Resource,
		ResourceID: log.ResourceID,
		Payload:    json.RawMessage(log.Payload),
		RequestID:  log.RequestID,
		CreatedAt:  log.CreatedAt,
	}
}
