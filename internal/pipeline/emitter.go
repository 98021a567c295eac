package pipeline

import (
	"github.com/moplabs/mopd/internal/decision"
	"github.com/moplabs/mopd/internal/domain"
)

// Emitter carries the ordered update stream for one run. Every update is
// stamped with a snapshot of the decision at emission time, so observers see
// null until the terminal transition and the terminal value on the final
// update.
type Emitter struct {
	ch    chan domain.Update
	state *decision.State
}

// newEmitter sizes the stream buffer for the worst case of the given stage
// count: up to three updates per stage (thinking, complete, kernel ok) plus
// the starting update and one terminal update. A full buffer is therefore
// unreachable, and a slow or departed observer never blocks the sequencer.
func newEmitter(state *decision.State, stageCount int) *Emitter {
	return &Emitter{
		ch:    make(chan domain.Update, 3*stageCount+4),
		state: state,
	}
}

// Updates returns the receive side of the stream. The channel is closed
// after the final update.
func (e *Emitter) Updates() <-chan domain.Update { return e.ch }

// emit stamps the decision snapshot onto u and appends it to the stream.
// Updates go out strictly in emission order, one per sequencer event.
func (e *Emitter) emit(u domain.Update) {
	u.KernelDecision = e.state.Value()
	e.ch <- u
}

// finish closes the stream. Nothing may be emitted afterwards.
func (e *Emitter) finish() { close(e.ch) }
