// Package pipeline provides composable, pull-based data pipeline operators.
//
// Pipelines are lazy: no work happens until values are pulled via Collect,
// Drain, or ForEach. Each stage pulls from the previous stage on demand,
// so one audio file is transcribed at a time and records reach the sink in
// input order.
//
// The Iterator interface is structurally compatible with provider.Iterator[T],
// so reader result streams plug directly into pipelines.
//
// # Operators
//
//   - Map: transform each value
//   - FlatMap: transform each value into multiple values
//   - Filter: keep values matching a predicate
//   - Tap: side-effect without altering the value (logging, counting)
//   - Buffer: decouple producer and consumer with a buffered channel, order kept
//
// # Usage
//
//	results := pipeline.FlatMap(pipeline.FromSlice(files), transcribeFile)
//	ok := pipeline.Filter(results, func(r Result) bool { return r.Err == nil })
//	pipeline.Drain(ok, writer.Send).Run(ctx)
package pipeline
