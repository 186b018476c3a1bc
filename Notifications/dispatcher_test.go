package Notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Workdesk/Models"
)

var t0 = time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)

func note(id string, minute int) Models.Notification {
	return Models.Notification{
		ID:          id,
		RecipientID: "u1",
		Type:        Models.NotificationTaskAssigned,
		Title:       "task " + id,
		CreatedAt:   t0.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(ns []Models.Notification) []string {
	out := []string{}
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}

func TestDispatchOncePerID(t *testing.T) {
	var calls []string
	d := NewDispatcher(NewSession(0), func(n Models.Notification) { calls = append(calls, n.ID) })

	first := d.Dispatch([]Models.Notification{note("n1", 1), note("n2", 2)})
	assert.Equal(t, []string{"n1", "n2"}, ids(first))

	second := d.Dispatch([]Models.Notification{note("n1", 1), note("n2", 2), note("n3", 3)})
	assert.Equal(t, []string{"n3"}, ids(second))

	for i := 0; i < 5; i++ {
		assert.Empty(t, d.Dispatch([]Models.Notification{note("n1", 1), note("n2", 2), note("n3", 3)}))
	}
	assert.Equal(t, []string{"n1", "n2", "n3"}, calls)
}

func TestSessionSurvivesDispatcherRebuild(t *testing.T) {
	session := NewSession(10)
	NewDispatcher(session, nil).Dispatch([]Models.Notification{note("n1", 1)})

	again := NewDispatcher(session, nil).Dispatch([]Models.Notification{note("n1", 1)})
	assert.Empty(t, again)
	assert.True(t, session.Seen("n1"))
}

func TestForgetRearms(t *testing.T) {
	d := NewDispatcher(NewSession(10), nil)
	d.Dispatch([]Models.Notification{note("n1", 1), note("n2", 2)})

	d.Forget("n1")
	assert.Equal(t, []string{"n1"}, ids(d.Dispatch([]Models.Notification{note("n1", 1), note("n2", 2)})))

	d.ForgetAll()
	assert.Equal(t, []string{"n1", "n2"}, ids(d.Dispatch([]Models.Notification{note("n2", 2), note("n1", 1)})))
}

func TestSessionIsBounded(t *testing.T) {
	session := NewSession(3)
	d := NewDispatcher(session, nil)

	var snap []Models.Notification
	for i := 1; i <= 5; i++ {
		snap = append(snap, note(fmt.Sprintf("n%d", i), i))
	}
	assert.Len(t, d.Dispatch(snap), 5)
	assert.Equal(t, 3, session.Len())

	// n1 and n2 were evicted but sit below the watermark
	assert.Empty(t, d.Dispatch(snap))

	fresh := d.Dispatch(append(snap, note("n6", 6)))
	assert.Equal(t, []string{"n6"}, ids(fresh))
}

func TestPendingTimestampStillDispatches(t *testing.T) {
	d := NewDispatcher(NewSession(1), nil)
	d.Dispatch([]Models.Notification{note("n1", 1), note("n2", 2)})
	n := Models.Notification{ID: "n3", RecipientID: "u1"}
	assert.Equal(t, []string{"n3"}, ids(d.Dispatch([]Models.Notification{n})))
}

type fakePush struct {
	sent []*messaging.MulticastMessage
	err  error
}

func (f *fakePush) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, m)
	return &messaging.BatchResponse{SuccessCount: len(m.Tokens)}, nil
}

func TestPushSink(t *testing.T) {
	push := &fakePush{}
	sink := NewPushSink(push, func(_ context.Context, uid string) ([]string, error) {
		if uid == "u1" {
			return []string{"tok-a", "tok-b"}, nil
		}
		return nil, nil
	})

	actor := "Lee"
	n := note("n1", 1)
	n.Type = Models.NotificationTaskRevision
	n.ActorDisplayName = &actor
	require.NoError(t, sink.Deliver(context.Background(), n))
	require.Len(t, push.sent, 1)
	assert.Equal(t, []string{"tok-a", "tok-b"}, push.sent[0].Tokens)
	assert.Equal(t, "task_revision", push.sent[0].Data["type"])
	assert.Equal(t, `Lee requested a revision of "task n1"`, push.sent[0].Notification.Body)

	other := note("n2", 2)
	other.RecipientID = "u2"
	require.NoError(t, sink.Deliver(context.Background(), other))
	assert.Len(t, push.sent, 1, "no tokens, nothing sent")
}

type fakePoster struct{ posts []string }

func (f *fakePoster) Post(_ context.Context, text string) error {
	f.posts = append(f.posts, text)
	return nil
}

func TestSlackSinkFiltersTypes(t *testing.T) {
	poster := &fakePoster{}
	sink := NewSlackSink(poster, Models.NotificationTaskCompleted)

	require.NoError(t, sink.Deliver(context.Background(), note("n1", 1)))
	done := note("n2", 2)
	done.Type = Models.NotificationTaskCompleted
	require.NoError(t, sink.Deliver(context.Background(), done))

	assert.Equal(t, []string{`Someone submitted "task n2" for review`}, poster.posts)
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	poster := &fakePoster{}
	boom := errors.New("push down")
	multi := MultiSink{NewSlackSink(poster), nil, NewPushSink(&fakePush{err: boom}, func(context.Context, string) ([]string, error) {
		return []string{"tok"}, nil
	})}
	err := multi.Deliver(context.Background(), note("n1", 1))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, poster.posts, 1, "a failing sink does not stop the others")
}

func TestPrimeMarksWithoutCallback(t *testing.T) {
	var got []string
	d := NewDispatcher(NewSession(8), func(n Models.Notification) { got = append(got, n.ID) })

	assert.Equal(t, 2, d.Prime([]Models.Notification{note("n1", 1), note("n2", 2)}))
	assert.Empty(t, got)

	fresh := d.Dispatch([]Models.Notification{note("n1", 1), note("n2", 2), note("n3", 3)})
	assert.Equal(t, []string{"n3"}, ids(fresh))
	assert.Equal(t, []string{"n3"}, got)
}

func TestWatermarkTieStillDispatchesUnseen(t *testing.T) {
	d := NewDispatcher(NewSession(1), nil)
	same := func(id string) Models.Notification { return note(id, 5) }

	assert.Equal(t, []string{"n1"}, ids(d.Dispatch([]Models.Notification{same("n1")})))
	// n2 evicts n1 and the watermark lands on their shared timestamp
	assert.Equal(t, []string{"n2"}, ids(d.Dispatch([]Models.Notification{same("n1"), same("n2")})))
	assert.Equal(t, []string{"n3"}, ids(d.Dispatch([]Models.Notification{same("n1"), same("n2"), same("n3")})))

	assert.Empty(t, d.Dispatch([]Models.Notification{same("n1"), same("n2"), same("n3")}))
}
