/*
Package events provides an in-memory broker for agent-snapper notifications.

In serve mode every reported outcome is published as a unit.outcome event,
and the dispatcher publishes event.deferred when a handler asks for a retry
and event.redelivered when the loop delivers it again. Subscribers receive
events on a buffered channel; a subscriber that falls behind misses events
rather than blocking the publisher.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.Metadata["snap"], ev.Message)
	}

Nothing is persisted here; the journal in package storage is the durable
record.
*/
package events
