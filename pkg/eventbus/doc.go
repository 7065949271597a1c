// Package eventbus provides a named-event publish/subscribe bus.
//
// Handlers are registered under an event name and invoked synchronously,
// in registration order, when that event is dispatched. Each dispatch
// pass operates on a snapshot of the handler list taken when the pass
// begins, so subscribing or unsubscribing from inside a handler never
// affects the pass in flight.
//
// Handlers are isolated from each other: a panicking handler is
// recovered and logged, and the remaining handlers still run. The
// dispatcher never observes a handler failure.
//
// Usage:
//
//	bus := eventbus.New()
//	cancel := bus.Subscribe("telemetry_data", func(payload any) { ... })
//	bus.Dispatch("telemetry_data", sample)
//	cancel()
package eventbus
