package executor

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
	"go.opentelemetry.io/otel/codes"
)

// Pipeline represents a lazily evaluated stream of record batches produced by
// one operator and consumed by its parent. It provides methods to read data
// and close resources.
type Pipeline interface {
	// Schema returns the schema of the records produced by the pipeline. It
	// equals the declared output schema of the operator that created the
	// pipeline.
	Schema() *arrow.Schema
	// Read collects the next value ([arrow.Record]) from the pipeline and returns it to the caller.
	// The caller owns the returned record and must release it.
	// It returns an error if reading fails or when the pipeline is exhausted. In this case, the function returns EOF.
	// Reading again after EOF returns EOF again.
	Read(context.Context) (arrow.Record, error)
	// Close closes the resources of the pipeline.
	// The implementation must close all of the pipeline's inputs.
	Close()
}

// EOF is the sentinel returned by [Pipeline.Read] once a pipeline is
// exhausted. It is never an error condition.
var EOF = errors.New("pipeline exhausted") //nolint:revive,staticcheck

type state struct {
	batch arrow.Record
	err   error
}

type readFunc func(context.Context, []Pipeline) (arrow.Record, error)

// GenericPipeline implements [Pipeline] over a read function that pulls from
// a set of input pipelines and transforms one batch at a time.
type GenericPipeline struct {
	schema *arrow.Schema
	inputs []Pipeline
	read   readFunc
}

func newGenericPipeline(schema *arrow.Schema, read readFunc, inputs ...Pipeline) *GenericPipeline {
	return &GenericPipeline{
		schema: schema,
		read:   read,
		inputs: inputs,
	}
}

var _ Pipeline = (*GenericPipeline)(nil)

// Schema implements Pipeline.
func (p *GenericPipeline) Schema() *arrow.Schema {
	return p.schema
}

// Read implements Pipeline.
func (p *GenericPipeline) Read(ctx context.Context) (arrow.Record, error) {
	if p.read == nil {
		return nil, EOF
	}
	return p.read(ctx, p.inputs)
}

// Close implements Pipeline.
func (p *GenericPipeline) Close() {
	for _, inp := range p.inputs {
		inp.Close()
	}
}

// emptyPipeline returns a pipeline of the given schema that is exhausted from
// the start.
func emptyPipeline(schema *arrow.Schema) Pipeline {
	return newGenericPipeline(schema, func(_ context.Context, _ []Pipeline) (arrow.Record, error) {
		return nil, EOF
	})
}

// prefetchingPipeline wraps a [Pipeline] with pre-fetching capability,
// reading data in a separate goroutine to enable concurrent processing.
type prefetchingPipeline struct {
	Pipeline // the pipeline that is wrapped

	initialized bool                    // internal state to indicate whether the pre-fetching goroutine is running
	done        error                   // terminal state, repeated on every read once reached
	ch          chan state              // the results channel for pre-fetched items
	cancel      context.CancelCauseFunc // cancellation function for the context
}

var _ Pipeline = (*prefetchingPipeline)(nil)

// newPrefetchingPipeline creates a new pipeline wrapper that reads data from
// the underlying pipeline in a separate goroutine, so the next batch can be
// produced while the consumer is still processing the current one. The
// results channel is unbuffered: at most one batch is in flight beyond what
// the consumer holds.
func newPrefetchingPipeline(p Pipeline) *prefetchingPipeline {
	return &prefetchingPipeline{
		Pipeline: p,
		ch:       make(chan state),
	}
}

// Read implements [Pipeline].
func (p *prefetchingPipeline) Read(ctx context.Context) (arrow.Record, error) {
	p.init(ctx)
	return p.read(ctx)
}

func (p *prefetchingPipeline) init(ctx context.Context) {
	if p.initialized {
		return
	}

	p.initialized = true

	ctx, p.cancel = context.WithCancelCause(ctx)
	go p.prefetch(ctx) // nolint:errcheck
}

func (p *prefetchingPipeline) prefetch(ctx context.Context) error {
	// Close channel on exit
	defer close(p.ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			var s state
			s.batch, s.err = p.Pipeline.Read(ctx)
			if s.err != nil {
				p.ch <- s
				return s.err
			}

			// Sending to channel will block until the batch is read by the parent pipeline.
			// If the context is cancelled while waiting to send, we return.
			select {
			case <-ctx.Done():
				if s.batch != nil {
					s.batch.Release()
				}
				return ctx.Err()
			case p.ch <- s:
			}
		}
	}
}

func (p *prefetchingPipeline) read(_ context.Context) (arrow.Record, error) {
	if p.done != nil {
		return nil, p.done
	}

	state := <-p.ch

	// Reading from a channel that is closed while waiting yields a zero-value.
	// In that case, the pipeline should produce an error state.
	if state.err == nil && state.batch == nil {
		p.done = context.Canceled
		return nil, p.done
	}
	if errors.Is(state.err, EOF) {
		p.done = EOF
	}
	return state.batch, state.err
}

// Close implements [Pipeline].
func (p *prefetchingPipeline) Close() {
	if p.cancel != nil {
		p.cancel(errors.New("pipeline is closed"))

		// Wait for the prefetch goroutine to finish. This avoids race conditions
		// where we close a pipeline right before it's read.
		//
		// This check can only be done if p.cancel is non-nil, otherwise we may
		// deadlock if Close is called before init.
		for s := range p.ch {
			if s.batch != nil {
				s.batch.Release()
			}
		}
	}
	p.Pipeline.Close()
}

type tracedPipeline struct {
	name  string
	inner Pipeline
}

var _ Pipeline = (*tracedPipeline)(nil)

// tracePipeline wraps a [Pipeline] to record each call to Read with a span.
func tracePipeline(name string, pipeline Pipeline) *tracedPipeline {
	return &tracedPipeline{
		name:  name,
		inner: pipeline,
	}
}

func (p *tracedPipeline) Schema() *arrow.Schema {
	return p.inner.Schema()
}

func (p *tracedPipeline) Read(ctx context.Context) (arrow.Record, error) {
	ctx, span := tracer.Start(ctx, p.name+".Read")
	defer span.End()

	res, err := p.inner.Read(ctx)
	if err != nil && !errors.Is(err, EOF) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return res, err
}

func (p *tracedPipeline) Close() { p.inner.Close() }
