// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/ManuGH/ytpoint/internal/metrics"
	"github.com/ManuGH/ytpoint/internal/points"
)

type HubSuite struct {
	suite.Suite
	hub *Hub
}

func (s *HubSuite) SetupTest() {
	s.hub = NewHub(4)
}

func (s *HubSuite) TearDownTest() {
	s.hub.Close()
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func snapWithTotal(total int64) points.Snapshot {
	return points.Snapshot{Points: points.Breakdown{Total: total, Manual: total}, Seq: uint64(total)}
}

func (s *HubSuite) recv(sub *Subscription) Event {
	select {
	case ev, ok := <-sub.C():
		s.Require().True(ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		s.FailNow("no event received")
		return Event{}
	}
}

func (s *HubSuite) TestPublishWithoutSubscribersIsNoop() {
	s.NoError(s.hub.Publish(TypeTip, map[string]int{"amount": 1}))
	s.Equal(0, s.hub.SubscriberCount())
}

func (s *HubSuite) TestSubscriberReceivesInOrder() {
	sub := s.hub.Subscribe("test")
	defer sub.Close()

	s.hub.PublishSnapshot(snapWithTotal(1))
	s.NoError(s.hub.Publish(TypeTip, map[string]int64{"amount": 500}))

	first := s.recv(sub)
	s.Equal(TypePoints, first.Type)
	var snap points.Snapshot
	s.Require().NoError(json.Unmarshal(first.Data, &snap))
	s.Equal(int64(1), snap.Points.Total)

	second := s.recv(sub)
	s.Equal(TypeTip, second.Type)
	s.Greater(second.Seq, first.Seq)
	s.JSONEq(`{"amount":500}`, string(second.Data))
}

func (s *HubSuite) TestSlowSubscriberDropsOldestWithoutBlocking() {
	slow := s.hub.Subscribe("slow")
	defer slow.Close()
	before := testutil.ToFloat64(metrics.BroadcastDroppedTotal.WithLabelValues("slow"))

	start := time.Now()
	for i := int64(1); i <= 100; i++ {
		s.hub.PublishSnapshot(snapWithTotal(i))
	}
	s.Less(time.Since(start), time.Second, "publisher must not wait on a reader that never reads")

	var totals []int64
	for i := 0; i < 4; i++ {
		var snap points.Snapshot
		s.Require().NoError(json.Unmarshal(s.recv(slow).Data, &snap))
		totals = append(totals, snap.Points.Total)
	}
	s.Equal([]int64{97, 98, 99, 100}, totals)
	s.Equal(before+96, testutil.ToFloat64(metrics.BroadcastDroppedTotal.WithLabelValues("slow")))
}

func (s *HubSuite) TestClosedSubscriberCollectedOnNextPublish() {
	sub := s.hub.Subscribe("test")
	keep := s.hub.Subscribe("test")
	defer keep.Close()
	s.Equal(2, s.hub.SubscriberCount())

	sub.Close()
	s.Equal(2, s.hub.SubscriberCount(), "removal is lazy")

	s.hub.PublishSnapshot(snapWithTotal(1))
	s.Equal(1, s.hub.SubscriberCount())
	_, ok := <-sub.C()
	s.False(ok, "collected subscription channel is closed")
	s.Equal(TypePoints, s.recv(keep).Type)
}

func (s *HubSuite) TestLatestSlot() {
	_, ok := s.hub.Latest()
	s.False(ok)

	s.hub.PublishSnapshot(snapWithTotal(3))
	s.hub.PublishSnapshot(snapWithTotal(8))
	latest, ok := s.hub.Latest()
	s.True(ok)
	s.Equal(int64(8), latest.Points.Total)
}

func (s *HubSuite) TestLatestSlotIgnoresOlderSnapshots() {
	sub := s.hub.Subscribe("test")
	defer sub.Close()
	before := testutil.ToFloat64(metrics.BroadcastStaleTotal)

	s.hub.PublishSnapshot(points.Snapshot{Points: points.Breakdown{Total: 20}, Seq: 2})
	s.hub.PublishSnapshot(points.Snapshot{Points: points.Breakdown{Total: 10}, Seq: 1})

	latest, ok := s.hub.Latest()
	s.True(ok)
	s.Equal(uint64(2), latest.Seq)
	s.Equal(int64(20), latest.Points.Total)
	s.Equal(before+1, testutil.ToFloat64(metrics.BroadcastStaleTotal))

	var snap points.Snapshot
	s.Require().NoError(json.Unmarshal(s.recv(sub).Data, &snap))
	s.Equal(int64(20), snap.Points.Total)
	select {
	case ev := <-sub.C():
		s.Failf("stale snapshot fanned out", "got %s", ev.Data)
	default:
	}
}

func (s *HubSuite) TestConcurrentPublishersEndOnNewest() {
	var wg sync.WaitGroup
	for w := int64(0); w < 8; w++ {
		wg.Add(1)
		go func(w int64) {
			defer wg.Done()
			for i := int64(1); i <= 50; i++ {
				s.hub.PublishSnapshot(snapWithTotal(w*50 + i))
			}
		}(w)
	}
	wg.Wait()

	latest, ok := s.hub.Latest()
	s.True(ok)
	s.Equal(uint64(400), latest.Seq)
}

func (s *HubSuite) TestWatchCoalescesToNewest() {
	ctx, cancel := context.WithCancel(context.Background())
	s.hub.PublishSnapshot(snapWithTotal(1))
	ch := s.hub.Watch(ctx)

	first := <-ch
	s.Equal(int64(1), first.Points.Total)

	for i := int64(2); i <= 50; i++ {
		s.hub.PublishSnapshot(snapWithTotal(i))
	}
	var last points.Snapshot
	s.Eventually(func() bool {
		select {
		case last = <-ch:
		default:
		}
		return last.Points.Total == 50
	}, time.Second, time.Millisecond)

	cancel()
	for range ch {
	}
}

func (s *HubSuite) TestCloseDetachesSubscribers() {
	sub := s.hub.Subscribe("test")
	s.hub.Close()
	_, ok := <-sub.C()
	s.False(ok)

	late := s.hub.Subscribe("test")
	_, ok = <-late.C()
	s.False(ok)
	s.NoError(s.hub.Publish(TypeTip, 1))
}
