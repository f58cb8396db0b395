// Package pipeline provides composable, pull-based data pipelines.
//
// Pipelines are lazy: no work happens until values are pulled via Collect,
// Drain, ForEach or Walk. Each stage pulls from the previous stage on demand,
// and a pipeline built from a slice or a sequence can be run more than once.
//
// # Operators
//
//   - Map: transform each value
//   - Filter: keep values matching a predicate
//   - Tap: side-effect without altering the value
//   - Concat: join pipelines sequentially
//   - Batch: group values into fixed-size slices
//
// # Builder
//
// Builder is an immutable, ordered list of steps over Pair elements. Steps
// can be named stubs that callers replace later with Unstub, which is how a
// fixed sequence (guard, hooks, persist, apply) gets its persist function:
//
//	save := pipeline.NewBuilder().
//	    ExpectType(pipeline.TypeOf[entity.Entity]()).
//	    Stub("persist").
//	    Keys()
//	bound, err := save.Unstub("persist", pipeline.Bind(persistStep, fn))
//	err = bound.With(pipeline.Indexed(src)).Walk(ctx)
//
// ExpectType is a barrier: it reads the whole input and validates every
// element before passing anything on.
package pipeline
