package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ReplaceLogs_FullSnapshot(t *testing.T) {
	s := NewStore(60)

	s.ReplaceLogs([]LogEntry{"A", "B", "C"})
	s.ReplaceLogs([]LogEntry{"B", "C"})

	assert.Equal(t, []LogEntry{"B", "C"}, s.Snapshot().Logs)
}

func TestStore_Snapshot_IsCopy(t *testing.T) {
	s := NewStore(60)
	s.ReplacePosts([]Post{{ID: 1, HotelName: "A", Status: PostStatusReady}})

	snap := s.Snapshot()
	snap.Posts[0].HotelName = "mutated"

	assert.Equal(t, "A", s.Snapshot().Posts[0].HotelName)
}

func TestStore_RunningOverlay(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("assertion shown until a later poll", func(t *testing.T) {
		s := NewStore(60)
		s.AssertRunning(true, t0)

		assert.True(t, s.Running())
		assert.False(t, s.Snapshot().Bot.Confirmed)

		// poll issued before the assertion cannot contradict it
		s.ReconcileRunning(false, t0.Add(-time.Second))
		assert.True(t, s.Running())
		assert.False(t, s.Snapshot().Bot.Confirmed)

		// poll issued after the assertion wins
		s.ReconcileRunning(false, t0.Add(time.Second))
		assert.False(t, s.Running())
		assert.True(t, s.Snapshot().Bot.Confirmed)
	})

	t.Run("poll issued at the assertion time reconciles", func(t *testing.T) {
		s := NewStore(60)
		s.AssertRunning(true, t0)
		s.ReconcileRunning(true, t0)

		assert.True(t, s.Running())
		assert.True(t, s.Snapshot().Bot.Confirmed)
	})

	t.Run("no assertion follows server", func(t *testing.T) {
		s := NewStore(60)
		s.ReconcileRunning(true, t0)
		assert.True(t, s.Running())
		s.ReconcileRunning(false, t0.Add(time.Second))
		assert.False(t, s.Running())
	})
}

func TestStore_SetInterval(t *testing.T) {
	s := NewStore(60)

	require.NoError(t, s.SetInterval(15))
	assert.Equal(t, 15, s.Interval())

	s.ReconcileRunning(true, time.Now())
	err := s.SetInterval(30)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgIntervalLocked, ve.Message)
	assert.Equal(t, 15, s.Interval())
}

func TestStore_AcquireRelease(t *testing.T) {
	s := NewStore(60)

	assert.True(t, s.Acquire(ActionScrape, 0))
	assert.False(t, s.Acquire(ActionScrape, 0))

	// independent flags
	assert.True(t, s.Acquire(ActionGenerate, 0))
	assert.True(t, s.Acquire(ActionPublish, 9))
	assert.False(t, s.Acquire(ActionPublish, 10))
	assert.Equal(t, ActionState{Scraping: true, Generating: true, PublishingID: 9}, s.Actions())

	s.Release(ActionScrape)
	s.Release(ActionGenerate)
	s.Release(ActionPublish)
	assert.Equal(t, ActionState{}, s.Actions())
}

func TestSnapshot_PostStatusOf(t *testing.T) {
	s := NewStore(60)
	s.ReplacePosts([]Post{
		{ID: 1, Status: PostStatusReady},
		{ID: 2, Status: PostStatusFailed},
	})
	require.True(t, s.Acquire(ActionPublish, 2))

	snap := s.Snapshot()
	assert.Equal(t, PostStatusReady, snap.PostStatusOf(snap.Posts[0]))
	assert.Equal(t, PostStatusPublishing, snap.PostStatusOf(snap.Posts[1]))
}

func TestStore_PushNotice_Capped(t *testing.T) {
	s := NewStore(60)
	for i := 0; i < maxNotices+5; i++ {
		s.PushNotice(Notice{Kind: NoticeError, Message: string(rune('a' + i))})
	}

	notices := s.Snapshot().Notices
	require.Len(t, notices, maxNotices)
	assert.Equal(t, string(rune('a'+5)), notices[0].Message)
	assert.Equal(t, string(rune('a'+maxNotices+4)), notices[maxNotices-1].Message)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(60)
	updates, unsubscribe := s.Subscribe()

	// many writes, one pending signal
	s.ReplaceLogs([]LogEntry{"A"})
	s.ReplaceLogs([]LogEntry{"B"})
	s.ReplacePosts(nil)

	select {
	case <-updates:
	default:
		t.Fatal("expected a signal")
	}
	select {
	case <-updates:
		t.Fatal("signals should coalesce")
	default:
	}

	unsubscribe()
	unsubscribe()
	_, ok := <-updates
	assert.False(t, ok)

	// writes after unsubscribe must not panic or block
	s.ReplaceLogs([]LogEntry{"C"})
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewStore(60)
	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.ReplaceLogs([]LogEntry{"A", "B"})
		}()
		go func() {
			defer wg.Done()
			s.ReconcileRunning(true, time.Now())
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	<-updates
	assert.Equal(t, []LogEntry{"A", "B"}, s.Snapshot().Logs)
	assert.True(t, s.Running())
}

func TestStore_ExplorerLoads(t *testing.T) {
	s := NewStore(60)

	s.BeginExplorerLoad()
	s.BeginExplorerLoad()
	s.EndExplorerLoad()
	assert.True(t, s.Snapshot().Explorer.Loading)

	s.EndExplorerLoad()
	assert.False(t, s.Snapshot().Explorer.Loading)

	// unmatched ends never go negative
	s.EndExplorerLoad()
	s.BeginExplorerLoad()
	assert.True(t, s.Snapshot().Explorer.Loading)
}
