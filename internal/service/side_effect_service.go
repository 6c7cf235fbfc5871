package service

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/pkg/jobs"
)

// EffectKind names one family of post-commit side effects.
type EffectKind string

const (
	EffectNotification EffectKind = "notification"
	EffectEmail        EffectKind = "email"
	EffectAudit        EffectKind = "audit"
)

// EmailRequest asks for a templated email to one recipient.
type EmailRequest struct {
	Template string
	To       mail.Address
	UserID   *string
	Data     map[string]interface{}
}

// Effect is one deferred, non-critical task produced by a core operation.
type Effect struct {
	Kind         EffectKind
	Notification *models.Notification
	Email        *EmailRequest
	Audit        *models.AdminActionLog
}

// NotifyEffect builds an in-app notification effect.
func NotifyEffect(n models.Notification) Effect {
	return Effect{Kind: EffectNotification, Notification: &n}
}

// EmailEffect builds a templated email effect. Recipients without an address yield an email that fails validation.
func EmailEffect(template, name, address string, userID string, data map[string]interface{}) Effect {
	req := EmailRequest{Template: template, To: mail.Address{Name: name, Address: address}, Data: data}
	if userID != "" {
		req.UserID = &userID
	}
	return Effect{Kind: EffectEmail, Email: &req}
}

// AuditEffect builds an audit log effect.
func AuditEffect(entry models.AdminActionLog) Effect {
	return Effect{Kind: EffectAudit, Audit: &entry}
}

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

type auditWriter interface {
	Create(ctx context.Context, entry *models.AdminActionLog) error
}

type templateSender interface {
	SendTemplate(ctx context.Context, req EmailRequest) error
}

// effectDispatcher is what core services depend on.
type effectDispatcher interface {
	Dispatch(ctx context.Context, effects ...Effect)
}

// SideEffectDispatcher runs effects after the primary transaction committed.
// Failures are logged and counted, never returned.
type SideEffectDispatcher struct {
	notifications notificationWriter
	audit         auditWriter
	email         templateSender
	queue         *jobs.Queue
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewSideEffectDispatcher constructs a dispatcher. Any sink may be nil, in which case its effects are dropped.
func NewSideEffectDispatcher(notifications notificationWriter, audit auditWriter, email templateSender, metrics *MetricsService, logger *zap.Logger) *SideEffectDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SideEffectDispatcher{notifications: notifications, audit: audit, email: email, metrics: metrics, logger: logger}
}

// UseQueue routes effects through q. Without a running queue effects run inline.
func (d *SideEffectDispatcher) UseQueue(q *jobs.Queue) {
	d.queue = q
}

// Dispatch hands each effect to the queue, or runs it inline when the queue is unavailable.
func (d *SideEffectDispatcher) Dispatch(ctx context.Context, effects ...Effect) {
	if d == nil {
		return
	}
	// effects outlive the request that produced them
	ctx = context.WithoutCancel(ctx)
	for _, effect := range effects {
		if d.queue.Running() {
			err := d.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: string(effect.Kind), Payload: effect})
			if err == nil {
				continue
			}
			d.logger.Warn("side effect queue unavailable, running inline", zap.String("kind", string(effect.Kind)), zap.Error(err))
		}
		if err := d.run(ctx, effect); err != nil {
			d.fail(effect.Kind, err)
			continue
		}
		d.metrics.RecordSideEffect(effect.Kind, "ok")
	}
}

// Handle is the jobs.Handler consuming queued effects.
func (d *SideEffectDispatcher) Handle(ctx context.Context, job jobs.Job) error {
	effect, ok := job.Payload.(Effect)
	if !ok {
		return fmt.Errorf("unexpected side effect payload %T", job.Payload)
	}
	if err := d.run(ctx, effect); err != nil {
		return err
	}
	d.metrics.RecordSideEffect(effect.Kind, "ok")
	return nil
}

// GiveUp is the queue callback for effects that exhausted their retries.
func (d *SideEffectDispatcher) GiveUp(job jobs.Job, err error) {
	d.fail(EffectKind(job.Type), err)
}

func (d *SideEffectDispatcher) fail(kind EffectKind, err error) {
	d.logger.Warn("side effect failed", zap.String("kind", string(kind)), zap.Error(err))
	d.metrics.RecordSideEffect(kind, "failed")
}

func (d *SideEffectDispatcher) run(ctx context.Context, effect Effect) error {
	switch effect.Kind {
	case EffectNotification:
		if d.notifications == nil || effect.Notification == nil {
			return nil
		}
		n := *effect.Notification
		return d.notifications.Create(ctx, &n)
	case EffectEmail:
		if d.email == nil || effect.Email == nil {
			return nil
		}
		return d.email.SendTemplate(ctx, *effect.Email)
	case EffectAudit:
		if d.audit == nil || effect.Audit == nil {
			return nil
		}
		entry := *effect.Audit
		return d.audit.Create(ctx, &entry)
	}
	return fmt.Errorf("unknown side effect kind %q", effect.Kind)
}
