package notifier

// notifiedSet tracks the IDs that have already produced a notification.  It
// is owned and mutated exclusively by the orchestrator goroutine.
type notifiedSet map[string]struct{}

func newNotifiedSet() notifiedSet {
	return make(notifiedSet)
}

// prune intersects the set with the IDs currently reported by the server, so
// IDs for messages no longer unread are forgotten.  This bounds the set and
// lets a message be re-notified if it ever reappears as unread.
func (s notifiedSet) prune(records []EmailRecord) notifiedSet {
	pruned := make(notifiedSet, len(s))
	for _, rec := range records {
		if _, ok := s[rec.ID]; ok {
			pruned[rec.ID] = struct{}{}
		}
	}
	return pruned
}

// filterUnnotified returns the records whose IDs are not in the set,
// preserving input order.
func filterUnnotified(records []EmailRecord, s notifiedSet) []EmailRecord {
	unnotified := make([]EmailRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := s[rec.ID]; !ok {
			unnotified = append(unnotified, rec)
		}
	}
	return unnotified
}

func (s notifiedSet) markNotified(ids []string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s notifiedSet) contains(id string) bool {
	_, ok := s[id]
	return ok
}
