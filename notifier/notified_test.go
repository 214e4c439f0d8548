package notifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPruneKeepsOnlyServerIDs(t *testing.T) {
	notified := newNotifiedSet()
	notified.markNotified([]string{"a", "b", "gone"})

	all := []EmailRecord{rec("a", "", 2), rec("b", "", 1), rec("c", "", 3)}
	pruned := notified.prune(all)

	require.Len(t, pruned, 2)
	require.True(t, pruned.contains("a"))
	require.True(t, pruned.contains("b"))
	require.False(t, pruned.contains("gone"))

	// The invariant: pruned is always a subset of the server-side IDs.
	ids := map[string]struct{}{}
	for _, r := range all {
		ids[r.ID] = struct{}{}
	}
	for id := range pruned {
		_, ok := ids[id]
		require.True(t, ok)
	}
}

func TestPruneEmptySet(t *testing.T) {
	pruned := newNotifiedSet().prune([]EmailRecord{rec("a", "", 1)})
	require.Empty(t, pruned)
}

func TestFilterUnnotifiedPreservesOrder(t *testing.T) {
	notified := newNotifiedSet()
	notified.markNotified([]string{"b"})

	all := []EmailRecord{rec("a", "", 3), rec("b", "", 2), rec("c", "", 1)}
	fresh := filterUnnotified(all, notified)

	require.Equal(t, []string{"a", "c"}, emailIDs(fresh))
}

func TestMarkNotifiedIsUnion(t *testing.T) {
	notified := newNotifiedSet()
	notified.markNotified([]string{"a"})
	notified.markNotified([]string{"a", "b"})

	require.Len(t, notified, 2)
	require.True(t, notified.contains("a"))
	require.True(t, notified.contains("b"))
}
