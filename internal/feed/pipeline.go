package feed

import (
	"context"

	"github.com/gpsbench/dragtimer/internal/monitoring"
	"github.com/gpsbench/dragtimer/internal/run"
)

// Subscriber is the slice of LineMux the pipeline needs.
type Subscriber interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// Submitter receives parsed position samples, normally the run state machine.
type Submitter interface {
	Submit(run.Sample)
}

// Pipeline subscribes to a line mux, parses each NMEA sentence, and submits
// the resulting samples downstream. Malformed sentences are logged and
// skipped; a noisy serial link must not stall a run in progress.
type Pipeline struct {
	mux    Subscriber
	parser *Parser
	sink   Submitter
}

func NewPipeline(mux Subscriber, parser *Parser, sink Submitter) *Pipeline {
	return &Pipeline{mux: mux, parser: parser, sink: sink}
}

// Run consumes sentences until the context is cancelled or the subscription
// channel closes.
func (p *Pipeline) Run(ctx context.Context) error {
	id, lines := p.mux.Subscribe()
	defer p.mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			sample, err := p.parser.Parse(line)
			if err != nil {
				monitoring.Logf("feed: dropping sentence: %v", err)
				continue
			}
			if sample == nil {
				continue
			}
			p.sink.Submit(*sample)
		}
	}
}
