package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLifecycleTransitions(t *testing.T) {
	postedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	cancelledAt := postedAt.Add(time.Hour)

	posted := Draft{}.Post(7, postedAt)
	require.Equal(t, StatusPosted, posted.Status())
	require.Equal(t, int64(7), posted.By)

	cancelled := posted.Cancel(9, cancelledAt, "mistake")
	require.Equal(t, StatusCancelled, cancelled.Status())
	require.Equal(t, int64(9), cancelled.By)
	require.Equal(t, "mistake", cancelled.Note)
	// cancellation keeps the posting audit trail
	require.Equal(t, int64(7), cancelled.PostedBy)
	require.Equal(t, postedAt, cancelled.PostedAt)
}

func TestStateFromFlags(t *testing.T) {
	at := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	require.Equal(t, StatusDraft, stateFromFlags(headerFlags{}).Status())

	posted := stateFromFlags(headerFlags{Posted: true, PostedBy: ref(int64(7)), PostedAt: &at})
	require.Equal(t, StatusPosted, posted.Status())
	require.Equal(t, int64(7), posted.(Posted).By)

	cancelled := stateFromFlags(headerFlags{
		Posted:      true,
		PostedBy:    ref(int64(7)),
		PostedAt:    &at,
		CancelledBy: ref(int64(9)),
		CancelledAt: ref(at.Add(time.Hour)),
		CancelNote:  ref("mistake"),
	})
	require.Equal(t, StatusCancelled, cancelled.Status())
	c := cancelled.(Cancelled)
	require.Equal(t, int64(9), c.By)
	require.Equal(t, int64(7), c.PostedBy)
	require.Equal(t, "mistake", c.Note)
}

func TestPostNowDefaults(t *testing.T) {
	var req BookingRequest
	require.False(t, req.PostNow())

	req.Draft = ref(true)
	require.False(t, req.PostNow())

	req.Draft = ref(false)
	require.True(t, req.PostNow())
}
