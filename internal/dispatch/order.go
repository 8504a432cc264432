package dispatch

import (
	"sort"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
)

// orderCandidates sorts due jobs by priority descending, then due time
// ascending within a priority band. This ordering determines fairness under
// contention and is part of the dispatch contract.
func orderCandidates(jobs []domain.ScheduledJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		ti, tj := jobs[i].NextDueAt, jobs[j].NextDueAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		}
		return ti.Before(*tj)
	})
}
