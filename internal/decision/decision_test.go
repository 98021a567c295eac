package decision

import (
	"sync"
	"testing"

	"github.com/moplabs/mopd/internal/domain"
)

func TestStateStartsPending(t *testing.T) {
	s := New()
	if got := s.Value(); got != domain.DecisionPending {
		t.Errorf("Value() = %q, want pending", got)
	}
	if s.Terminal() {
		t.Error("Terminal() = true for fresh state")
	}
}

func TestResolveFirstWriteWins(t *testing.T) {
	s := New()

	if !s.Resolve(domain.DecisionNormal) {
		t.Fatal("Resolve(Normal) = false, want true on first write")
	}
	if got := s.Value(); got != domain.DecisionNormal {
		t.Fatalf("Value() = %q, want %q", got, domain.DecisionNormal)
	}

	// A late stop reply must not flip N to L.
	if s.Resolve(domain.DecisionLimited) {
		t.Error("Resolve(Limited) = true after Normal, want rejected")
	}
	if got := s.Value(); got != domain.DecisionNormal {
		t.Errorf("Value() = %q after rejected write, want %q", got, domain.DecisionNormal)
	}
}

func TestResolveRejectsNonTerminal(t *testing.T) {
	s := New()
	if s.Resolve(domain.DecisionPending) {
		t.Error("Resolve(Pending) = true, want rejected")
	}
	if s.Terminal() {
		t.Error("Terminal() = true after rejected write")
	}
}

func TestResolveConcurrentSingleWinner(t *testing.T) {
	s := New()

	const writers = 32
	var wg sync.WaitGroup
	wins := make(chan domain.Decision, writers)

	for i := 0; i < writers; i++ {
		d := domain.DecisionNormal
		if i%2 == 1 {
			d = domain.DecisionLimited
		}
		wg.Add(1)
		go func(d domain.Decision) {
			defer wg.Done()
			if s.Resolve(d) {
				wins <- d
			}
		}(d)
	}
	wg.Wait()
	close(wins)

	var winners []domain.Decision
	for d := range wins {
		winners = append(winners, d)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %d, want exactly 1", len(winners))
	}
	if got := s.Value(); got != winners[0] {
		t.Errorf("Value() = %q, want winning write %q", got, winners[0])
	}
}
