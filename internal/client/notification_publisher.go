package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/byggsak/be-cc-claims/internal/natsclient"
)

// NotificationPublisher publishes case and approval events to NATS for
// consumption by the notification service.
//
// Subject convention: notifications.cc.<event_type>
// Event types: track_submitted, track_responded, package_submitted,
//              approval_required, package_approved, package_rejected,
//              package_restored
//
// All publish operations are non-fatal — errors are logged but never
// propagated to the caller, so notification failures never interrupt
// claim or approval operations.
type NotificationPublisher struct {
	nats *natsclient.Client
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string                 `json:"event_type"`
	ProjectID    string                 `json:"project_id"`
	ActorID      string                 `json:"actor_id"`
	Recipients   []string               `json:"recipients"`
	ResourceType string                 `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	IsActionable bool                   `json:"is_actionable,omitempty"`
	Severity     string                 `json:"severity,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// client. A nil client disables publishing.
func NewNotificationPublisher(nats *natsclient.Client, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nats: nats, log: log}
}

// PublishCaseEvent publishes a change-claim case event to NATS.
// Subject: notifications.cc.<eventType>
func (p *NotificationPublisher) PublishCaseEvent(ctx context.Context, eventType, caseID, projectID, actorID string, recipients []string, payload map[string]interface{}) {
	if p.nats == nil {
		return
	}
	if len(recipients) == 0 {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		ProjectID:    projectID,
		ActorID:      actorID,
		Recipients:   recipients,
		ResourceType: "claim_case",
		ResourceID:   caseID,
		IsActionable: true,
		Severity:     "info",
		Category:     "cc_approval",
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.cc.%s", eventType)
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("case_id", caseID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("case_id", caseID).
		Int("recipients", len(recipients)).
		Msg("notification: event published")
}
