// Package notify publishes lead lifecycle events.
//
// Events go to subjects of the form
//
//	{prefix}.{lead_id}.{event}
//
// e.g. leads.7f3c....phase_one_complete.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
)

// Event names.
const (
	EventPhaseOneComplete = "phase_one_complete"
	EventPhaseTwoStarted  = "phase_two_started"
	EventPhaseTwoComplete = "phase_two_complete"
	EventError            = "error"
	EventReset            = "reset"
)

// Event is the payload published for a lead transition.
type Event struct {
	Name         string                     `json:"event"`
	LeadID       string                     `json:"lead_id"`
	Status       models.Status              `json:"status"`
	BusinessName string                     `json:"business_legal_name,omitempty"`
	FolderID     string                     `json:"folder_id,omitempty"`
	Documents    []models.GeneratedDocument `json:"documents,omitempty"`
	Error        string                     `json:"error,omitempty"`
	At           time.Time                  `json:"at"`
}

// Notifier publishes events. Publishing is best effort: callers log the
// error and carry on.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("oxileads"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSNotifier publishes JSON events on a NATS connection.
type NATSNotifier struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSNotifier(nc *nats.Conn, prefix string) *NATSNotifier {
	if prefix == "" {
		prefix = "leads"
	}
	return &NATSNotifier{nc: nc, prefix: prefix}
}

// Subject returns the subject ev is published on.
func (n *NATSNotifier) Subject(ev Event) string {
	return Subject(n.prefix, ev)
}

func (n *NATSNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.nc.Publish(n.Subject(ev), data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Name, err)
	}
	return nil
}

// Subject builds {prefix}.{lead_id}.{event}.
func Subject(prefix string, ev Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, ev.LeadID, ev.Name)
}

// LogNotifier writes events to the log. It is used when no broker is
// configured.
type LogNotifier struct {
	log *logging.Logger
}

func NewLogNotifier(log *logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, ev Event) error {
	n.log.Info(ctx, "lead event",
		zap.String("event", ev.Name),
		zap.String("lead_id", ev.LeadID),
		zap.String("status", string(ev.Status)),
		zap.Int("documents", len(ev.Documents)),
	)
	return nil
}
