// Package pool runs conversion requests on a fixed set of isolated worker
// processes.
//
// A Handle owns one worker process and drives it through
// Starting → Idle ⇄ Busy → Draining → Dead. A Pool owns N slots, each holding
// at most one Handle. Requests are spread round-robin over the slots and
// queue FIFO behind each other within a slot. Dead or retiring handles are
// replaced lazily by the next request that lands on their slot, so one bad
// document costs at most one process, never the pool.
//
// Timeouts and cancellation always kill the worker's process group: the only
// way to stop a conversion stuck inside a native engine is to end the process.
package pool
