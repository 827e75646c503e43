// Package queue provides the bounded, thread-safe event queue that sits
// between log emitters and the delivery worker.
//
// # Overview
//
// The queue is a fixed-capacity ring of event.Event values. Producers
// call Write from whatever goroutine is logging; the single delivery
// worker calls Drain to pull events off in arrival order. Writes never
// block and never fail under load: when the queue is full the oldest
// event is shed to make room, so after any overload the queue holds a
// contiguous run of the newest events.
//
// # Quick Start
//
//	q := queue.New(8192,
//		queue.WithMetrics(metrics, "api"),
//		queue.WithDropCallback(func(ev event.Event, reason string) {
//			fmt.Printf("dropped %q (%s)\n", ev.Message, reason)
//		}),
//	)
//
//	_ = q.Write(ev)
//
//	// Pull up to 10000 events or 1 MiB, whichever comes first.
//	events := q.Drain(10000, 1<<20)
//
// # Backpressure
//
// Shedding the oldest event is the only overflow behavior. A logging
// queue must prefer recent events over old ones when forced to choose,
// and it must never make the application block on its logger. Every
// shed event is counted as a drop and handed to the drop callback with
// reason "queue_full"; events still queued when Close is called are
// dropped with reason "shutdown". Nothing disappears silently.
//
// # Draining
//
// Drain honors both a count ceiling and a byte ceiling, sized with the
// event.Size accounting that the remote service applies to batches. One
// exception keeps the queue live: an event whose own size exceeds the
// byte ceiling is still returned, alone, so an oversized record cannot
// permanently block delivery.
//
// # Observability
//
// Statistics are always collected and available via Stats(): writes,
// drained events, drops, current and peak depth and byte size, plus
// computed rates. The WithMetrics option additionally mirrors depth,
// byte size, and drop counts into the shared Prometheus metric set so
// dashboards see the same numbers without a second collector sweep.
package queue
