package services

import "veriboard/internal/models"

// VerificationTransitions is shared by employment records and companies.
// verified and rejected are terminal for decisions; resubmitting a document
// is the only way out of rejected.
var VerificationTransitions = map[string]map[string]bool{
	models.StatusPending:  {models.StatusVerified: true, models.StatusRejected: true},
	models.StatusInReview: {models.StatusVerified: true, models.StatusRejected: true},
	models.StatusVerified: {},
	models.StatusRejected: {},
}

// resubmittableStatuses are the states from which a document may be (re)uploaded.
var resubmittableStatuses = []string{models.StatusPending, models.StatusInReview, models.StatusRejected}

func canTransition(current, to string, table map[string]map[string]bool) bool {
	nexts, ok := table[current]
	if !ok {
		return false
	}
	return nexts[to]
}

// sourcesFor lists every state that may move to the target; used to guard UPDATEs.
func sourcesFor(to string, table map[string]map[string]bool) []string {
	var res []string
	for from, nexts := range table {
		if nexts[to] {
			res = append(res, from)
		}
	}
	return res
}
