package telemetry

import (
	"context"
	"log"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter records document and object mutations on the audit
// exchange. Emission is best-effort; a failed publish only logs.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	Role          string       `json:"role,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Collection string `json:"collection,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Action     string `json:"action"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// EmitMutation records one store mutation (add/update/remove/upload).
func (e *AuditEmitter) EmitMutation(ctx context.Context, action, collection, documentID, requestID, role string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "store_mutation",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Role:          role,
		Payload: AuditPayload{
			Collection: collection,
			DocumentID: documentID,
			Action:     action,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
