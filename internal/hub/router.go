package hub

import (
	"context"
	"log/slog"
	"sort"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chat-core/internal/models"
	"chat-core/internal/observability"
)

var tracer = otel.Tracer("chat-core/hub")

// Router computes fan-out target sets and delivers events to them. A failed
// delivery to one connection is logged and never stops the rest.
type Router struct {
	registry *Registry
	groups   *Groups
	log      *slog.Logger
}

// NewRouter builds a router over the given registry and groups.
func NewRouter(registry *Registry, groups *Groups, log *slog.Logger) *Router {
	return &Router{registry: registry, groups: groups, log: log}
}

// Broadcast delivers event to every connection live at call time and
// returns how many deliveries succeeded.
func (r *Router) Broadcast(ctx context.Context, event models.Event) int {
	_, span := tracer.Start(ctx, "router.broadcast", trace.WithAttributes(attribute.String("event", event.Target)))
	defer span.End()

	return r.deliver(r.registry.Snapshot(), event)
}

// BroadcastToGroup delivers event to the group's members live at call time.
func (r *Router) BroadcastToGroup(ctx context.Context, group string, event models.Event) int {
	_, span := tracer.Start(ctx, "router.broadcast_group", trace.WithAttributes(
		attribute.String("event", event.Target),
		attribute.String("group", group),
	))
	defer span.End()

	return r.deliver(r.registry.Resolve(r.groups.MembersOf(group)), event)
}

// PrivateTargets is the union of both parties' live connections.
func (r *Router) PrivateTargets(fromID, toID string) []string {
	targets := lo.Union(r.registry.ConnectionsOf(fromID), r.registry.ConnectionsOf(toID))
	sort.Strings(targets)
	return targets
}

// DeliverPrivate sends event to every live device of both parties, which is
// how the sender's other devices see their own outgoing message. It returns
// the target set; an offline recipient is not an error.
func (r *Router) DeliverPrivate(ctx context.Context, fromID, toID string, event models.Event) []string {
	_, span := tracer.Start(ctx, "router.deliver_private", trace.WithAttributes(attribute.String("event", event.Target)))
	defer span.End()

	targets := r.PrivateTargets(fromID, toID)
	r.deliver(r.registry.Resolve(targets), event)
	return targets
}

// DeliverPrivateEcho is DeliverPrivate with a distinct event for the sender's
// own devices. The target set is the same union.
func (r *Router) DeliverPrivateEcho(ctx context.Context, fromID, toID string, toEvent, ownEvent models.Event) []string {
	_, span := tracer.Start(ctx, "router.deliver_private_echo", trace.WithAttributes(attribute.String("event", toEvent.Target)))
	defer span.End()

	own := r.registry.ConnectionsOf(fromID)
	others := lo.Without(r.registry.ConnectionsOf(toID), own...)
	r.deliver(r.registry.Resolve(own), ownEvent)
	r.deliver(r.registry.Resolve(others), toEvent)

	targets := lo.Union(own, others)
	sort.Strings(targets)
	return targets
}

// SendTo delivers event to a single connection, used for caller-only replies.
func (r *Router) SendTo(handle string, event models.Event) bool {
	conn, ok := r.registry.Lookup(handle)
	if !ok {
		return false
	}
	return r.deliver([]Connection{conn}, event) == 1
}

func (r *Router) deliver(conns []Connection, event models.Event) int {
	delivered := 0
	for _, conn := range conns {
		if err := conn.Sender.Send(event); err != nil {
			r.log.Warn("delivery failed",
				"conn_id", conn.Handle,
				"user_id", conn.Principal.ID,
				"event", event.Target,
				"error", err,
			)
			observability.IncDeliveryFailure(event.Target)
			continue
		}
		delivered++
	}
	observability.AddDeliveries(event.Target, delivered)
	return delivered
}
