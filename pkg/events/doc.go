/*
Package events provides an in-memory event broker used to fan out
consensus and ingestion notices to interested subscribers: leader
commits and skips, swap table rebuilds, checkpoint delivery, cache
evictions.

Publish is best-effort. It queues the event on a 100-slot internal
channel and waits only while that queue is full, returning at once after
Stop. A slow or absent subscriber never stalls the broker or the caller
publishing an event; its buffered channel simply drops events once full.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("%s: %s\n", event.Type, event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventLeaderCommitted,
		Message: "wave 4 leader committed",
	})

This is in-memory only: there is no persistence, replay, or delivery
guarantee. Anything that needs a durable record of consensus progress
should read it back out of the commit log instead of relying on events.
*/
package events
