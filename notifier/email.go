package notifier

import "sort"

// noSubjectPlaceholder is substituted when a message carries no subject header.
const noSubjectPlaceholder = "(no subject)"

// EmailRecord is the canonical shape of one unread message as reported by the
// mail source.  Timestamp is seconds since epoch; 0 means the Date header
// could not be parsed and sorts as oldest.  Link falls back to the configured
// inbox URL when the source cannot build a per-message deep link.
type EmailRecord struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Timestamp int64  `json:"timestamp"`
	Link      string `json:"link"`
}

// ThreadGroup is one display entry: the newest member of a thread plus the
// size of the thread.  The embedded record is a copy of the representative
// member, never a shared reference into the canonical list.
type ThreadGroup struct {
	EmailRecord
	MemberCount int      `json:"member_count"`
	MemberIDs   []string `json:"member_ids"`
}

// dedupEmails drops every ID after its first occurrence and sorts the result
// newest first.  The first copy wins even if a later duplicate carries
// different data; within equal timestamps the input order is preserved.
// Idempotent: dedupEmails(dedupEmails(x)) == dedupEmails(x).
func dedupEmails(records []EmailRecord) []EmailRecord {
	seen := make(map[string]struct{}, len(records))
	deduped := make([]EmailRecord, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		deduped = append(deduped, rec)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Timestamp > deduped[j].Timestamp
	})
	return deduped
}

// groupByThread partitions records by thread ID.  Records without a thread ID
// become singleton groups keyed by their own ID so they never merge with each
// other.  Each group's representative is its newest member, ties broken by
// input order; groups are sorted newest first.  The member counts always sum
// to len(records) and every ID lands in exactly one group.
func groupByThread(records []EmailRecord) []ThreadGroup {
	if len(records) == 0 {
		return []ThreadGroup{}
	}

	index := make(map[string]int, len(records))
	groups := make([]ThreadGroup, 0, len(records))
	for _, rec := range records {
		key := rec.ThreadID
		if key == "" {
			key = "_no_thread_" + rec.ID
		}

		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, ThreadGroup{
				EmailRecord: rec,
				MemberCount: 1,
				MemberIDs:   []string{rec.ID},
			})
			continue
		}

		groups[i].MemberCount++
		groups[i].MemberIDs = append(groups[i].MemberIDs, rec.ID)
		if rec.Timestamp > groups[i].Timestamp {
			ids := groups[i].MemberIDs
			count := groups[i].MemberCount
			groups[i] = ThreadGroup{EmailRecord: rec, MemberCount: count, MemberIDs: ids}
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Timestamp > groups[j].Timestamp
	})
	return groups
}

// removeEmailsByID filters out the given IDs, preserving order.
func removeEmailsByID(records []EmailRecord, ids []string) []EmailRecord {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := make([]EmailRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := drop[rec.ID]; ok {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// threadMemberIDs returns the IDs of every record sharing a thread with the
// given ID.  When the record has no thread ID, or is unknown, the result is
// just the given ID itself.
func threadMemberIDs(records []EmailRecord, id string) []string {
	threadID := ""
	for _, rec := range records {
		if rec.ID == id {
			threadID = rec.ThreadID
			break
		}
	}
	if threadID == "" {
		return []string{id}
	}

	ids := []string{}
	for _, rec := range records {
		if rec.ThreadID == threadID {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func emailIDs(records []EmailRecord) []string {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	return ids
}
