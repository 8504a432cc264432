package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
)

func job(name string, priority int, due time.Time) domain.ScheduledJob {
	return domain.ScheduledJob{Name: name, Priority: priority, NextDueAt: &due}
}

func names(jobs []domain.ScheduledJob) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.Name
	}
	return out
}

func TestOrderCandidatesPriorityFirst(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	jobs := []domain.ScheduledJob{
		job("low", 1, t0),
		job("high", 5, t0),
		job("mid", 3, t0),
	}
	orderCandidates(jobs)
	assert.Equal(t, []string{"high", "mid", "low"}, names(jobs))
}

func TestOrderCandidatesEarliestDueWithinBand(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	jobs := []domain.ScheduledJob{
		job("later", 5, t0.Add(time.Minute)),
		job("earlier", 5, t0),
		job("top", 10, t0.Add(time.Hour)),
	}
	orderCandidates(jobs)
	assert.Equal(t, []string{"top", "earlier", "later"}, names(jobs))
}

func TestOrderCandidatesNilDueSortsLast(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	jobs := []domain.ScheduledJob{
		{Name: "nodue", Priority: 5},
		job("due", 5, t0),
	}
	orderCandidates(jobs)
	assert.Equal(t, []string{"due", "nodue"}, names(jobs))
}
