package event

import (
	"context"

	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
)

// ConnectionHandler receives connectivity signals.
type ConnectionHandler interface {
	OnConnectionChanged(ctx context.Context, online bool)
}

// Dispatcher routes transport envelopes: connectivity signals go to the
// connection handler, everything else to the EventService.
type Dispatcher struct {
	service    *EventService
	connection ConnectionHandler
	log        waLog.Logger
}

// NewDispatcher creates a new event dispatcher. connection may be nil.
func NewDispatcher(service *EventService, connection ConnectionHandler, log waLog.Logger) *Dispatcher {
	return &Dispatcher{
		service:    service,
		connection: connection,
		log:        log.Sub("EventDispatcher"),
	}
}

// Handle routes one envelope.
func (d *Dispatcher) Handle(ctx context.Context, env chat.Envelope) {
	if ctx.Err() != nil || env.Type == TypeHealthCheck {
		return
	}

	evt, ok := Decode(env)
	if !ok {
		d.log.Debugf("Unhandled event type: %s", env.Type)
		return
	}
	switch e := evt.(type) {
	case ConnectionChanged:
		d.log.Infof("Connection changed, online=%v", e.Online)
		if d.connection != nil {
			d.connection.OnConnectionChanged(ctx, e.Online)
		}
	default:
		_ = d.service.Apply(ctx, evt)
	}
}
