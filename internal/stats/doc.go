// Package stats provides real-time aggregation of inbound request events for
// the list server.
//
// The central [Collector] type is fed by the network path and polled by the
// dashboard, the console reporter, and the admin API:
//
//	collector := stats.NewCollector()
//
//	// Hot path, once per counted client request:
//	collector.RecordRequest(sourceIP, country)
//	collector.RecordPacketsSent(2)
//
//	// Reader side, at any cadence:
//	summary := collector.Summary()
//
// # Consistency
//
// A single mutex guards the whole collector. Each recording call applies all
// of its effects (counters, identity set, category table, rate rings) as one
// atomic step, and [Collector.Summary] is computed under one lock hold, so a
// reader never sees a state where the request counter moved but the identity
// set did not. Critical sections are O(1) map and ring updates; the lock is
// never held across I/O.
//
// # Memory
//
// The collector runs for the whole server lifetime and holds no raw event
// history. Rate estimation uses two fixed rings: the last 300 raw event
// timestamps for the short-window rate and 60 per-second bucket counts for
// charting. Identity and category tables grow with distinct keys only.
//
// Nothing is persisted; [Collector.Reset] returns the instance to its
// freshly constructed state.
package stats
