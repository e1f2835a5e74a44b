// Package notification delivers billing and settlement event notices.
// Delivery is fire-and-forget; a failed notice never fails the operation
// that raised it.
package notification

import (
	"context"
	"fmt"
	"time"

	"cargopay/pkg/logger"

	"github.com/google/uuid"
)

type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
)

// Notice is a rendered message headed for the customer or operator channel.
type Notice struct {
	ID        uuid.UUID
	Event     string
	Priority  Priority
	Subject   string
	Body      string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

type Service struct {
	logger logger.Logger
}

func NewService(log logger.Logger) *Service {
	return &Service{logger: log}
}

// Notify renders an event into a notice and dispatches it. Unknown events
// still go out with a generic subject.
func (s *Service) Notify(ctx context.Context, event string, fields map[string]interface{}) {
	var subject, body string
	priority := PriorityNormal

	switch event {
	case "invoice.generated":
		subject = "Invoice issued"
		body = fmt.Sprintf("Invoice %v for %v MNT is ready for payment.", fields["code"], fields["total"])

	case "invoice.paid":
		subject = "Payment received"
		body = fmt.Sprintf("Invoice %v was paid via %v. Your pickup code is ready.", fields["code"], fields["method"])
		priority = PriorityHigh

	case "invoice.picked_up":
		subject = "Packages delivered"
		body = fmt.Sprintf("%v package(s) were handed over.", fields["delivered"])

	case "return.reviewed":
		subject = "Return request reviewed"
		body = fmt.Sprintf("Your return request was %v.", fields["decision"])
		priority = PriorityHigh

	case "settlement.transferred":
		subject = "Settlement paid out"
		body = fmt.Sprintf("Settlement %v was transferred (ref %v).", fields["settlement_id"], fields["reference"])
		priority = PriorityHigh

	default:
		subject = "Notification"
		body = fmt.Sprintf("Event: %s", event)
		priority = PriorityLow
	}

	s.send(ctx, &Notice{
		ID:        uuid.New(),
		Event:     event,
		Priority:  priority,
		Subject:   subject,
		Body:      body,
		Metadata:  fields,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Service) send(_ context.Context, n *Notice) {
	// Delivery providers plug in here; the log line is the delivery record.
	s.logger.Info("Notification sent", map[string]interface{}{
		"notification_id": n.ID,
		"event":           n.Event,
		"subject":         n.Subject,
		"priority":        n.Priority,
	})
}
