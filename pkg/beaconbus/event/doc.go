// Package event provides the tagged publish/subscribe bus that beacon
// requests and their completion events travel on.
//
// # Overview
//
//   - Envelope: a tagged message with an ID, optional correlation ID and a
//     string-keyed payload
//   - Transport and Bus: Connect opens a scoped handle; the handle publishes,
//     waits for exact tags and receives anything queued
//   - LocalBus: the in-memory bus, also hosting handler subscriptions
//   - Router: tag dispatch with middleware, schema validation and a
//     dead letter queue
//
// # Handles and Mailboxes
//
// Each handle owns a bounded FIFO Mailbox. The handle is subscribed inside
// Connect, so a reply published after Connect returns is always queued:
//
//	h, err := bus.Connect(ctx, "minion")
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	req := event.NewEnvelope("manage_beacons", map[string]any{"func": "list"})
//	if _, err := h.Publish(ctx, req); err != nil {
//	    return err
//	}
//	reply, err := h.WaitFor(ctx, "/salt/minion/minion_beacons_list_complete", 30*time.Second)
//
// WaitFor removes the first envelope with exactly that tag and leaves all
// others queued. When a mailbox overflows the oldest envelope is dropped and
// BusConfig.OnDrop is told. A handle never sees its own publications.
//
// # Responders
//
// An in-process responder subscribes a Handler. Envelopes the handler
// returns are published back onto the bus:
//
//	router := event.NewRouter(event.DefaultRouterConfig)
//	router.Use(event.RecoveryMiddleware())
//	router.Use(event.CorrelationMiddleware())
//	router.Register(event.TagHandler([]event.Tag{"manage_beacons"}, handle))
//	sub := bus.Subscribe(router.Handles(), router)
//	defer sub.Unsubscribe()
//
// # Thread Safety
//
// LocalBus, Mailbox, TagRegistry, DefaultRouter and InMemoryDLQ are safe for
// concurrent use.
package event
