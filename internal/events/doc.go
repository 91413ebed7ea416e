/*
Package events provides a generic publish/subscribe hub.

It generalizes the cuemby/warren pkg/events.Broker (a single concrete
EventType/Event pair) into a type-parameterized Broker[T] so the same
subscribe/publish/broadcast machinery backs both the Backend Engine's typed
job events and the Transaction List's Changed notifications, without either
caller resorting to named signal strings or an event-hub interface.
*/
package events
