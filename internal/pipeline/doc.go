// Package pipeline connects stage workers with bounded FIFO queues.
//
// A Graph owns one goroutine per stage. Each worker takes items from its
// input queue, runs the stage handler, and puts derived items on its output
// queue. A full queue blocks the producer, which bounds how far an upstream
// stage can run ahead. End of stream is a sentinel: the feeder emits exactly
// one after the last unit and every worker forwards exactly one sentinel
// downstream before returning. The graph drains the final queue and reports
// per-stage counters plus the units that completed every stage.
package pipeline
