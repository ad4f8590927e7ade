package engine_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/seantiz/qexec/internal/engine"
	"github.com/seantiz/qexec/internal/model"
)

func event(id string, s model.Status) model.StatusEvent {
	return model.StatusEvent{JobID: id, Status: s, At: time.Now().UTC()}
}

func TestStatusBrokerSingleSubscriber(t *testing.T) {
	b := engine.NewStatusBroker()
	ch, unsub := b.Subscribe("j1")
	defer unsub()

	want := []model.Status{model.StatusQueued, model.StatusRunning, model.StatusDone}
	for _, s := range want {
		b.Publish(event("j1", s))
	}
	b.Close("j1")

	var got []model.Status
	for ev := range ch {
		got = append(got, ev.Status)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, s, want[i])
		}
	}
}

func TestStatusBrokerMultipleSubscribers(t *testing.T) {
	b := engine.NewStatusBroker()
	ch1, unsub1 := b.Subscribe("j1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("j1")
	defer unsub2()

	b.Publish(event("j1", model.StatusRunning))
	b.Close("j1")

	for i, ch := range []<-chan model.StatusEvent{ch1, ch2} {
		var got []model.Status
		for ev := range ch {
			got = append(got, ev.Status)
		}
		if len(got) != 1 || got[0] != model.StatusRunning {
			t.Errorf("subscriber %d got %v, want [RUNNING]", i+1, got)
		}
	}
}

func TestStatusBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := engine.NewStatusBroker()
	b.Publish(event("j1", model.StatusDone))
	b.Close("j1")

	ch, unsub := b.Subscribe("j1")
	defer unsub()

	if _, ok := <-ch; ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func TestStatusBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewStatusBroker()
	ch, unsub := b.Subscribe("j1")
	unsub()

	b.Publish(event("j1", model.StatusRunning))
	b.Close("j1")

	select {
	case ev, ok := <-ch:
		if ok {
			t.Errorf("got unexpected event %+v after unsubscribe", ev)
		}
	default:
	}
}

func TestStatusBrokerIsolatesJobs(t *testing.T) {
	b := engine.NewStatusBroker()
	ch, unsub := b.Subscribe("j1")
	defer unsub()

	b.Publish(event("j2", model.StatusRunning))
	b.Close("j2")
	b.Publish(event("j1", model.StatusCancelled))
	b.Close("j1")

	var got []model.StatusEvent
	for ev := range ch {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].JobID != "j1" {
		t.Errorf("subscriber got %+v, want only j1's event", got)
	}
}

func TestStatusBrokerPublishToUnknownJobIsNoop(t *testing.T) {
	b := engine.NewStatusBroker()
	b.Publish(event("nonexistent", model.StatusRunning))
	b.Close("nonexistent")
}

func TestStatusBrokerForgetDropsClosedTopic(t *testing.T) {
	b := engine.NewStatusBroker()
	ch, unsub := b.Subscribe("j1")
	defer unsub()

	b.Forget("j1")
	if n := b.Topics(); n != 1 {
		t.Fatalf("Topics() after forgetting an open topic = %d, want 1", n)
	}

	b.Close("j1")
	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close")
	}
	b.Forget("j1")
	if n := b.Topics(); n != 0 {
		t.Errorf("Topics() after Forget = %d, want 0", n)
	}
}

func TestStatusBrokerUnsubscribeDropsIdleTopic(t *testing.T) {
	b := engine.NewStatusBroker()
	_, unsub1 := b.Subscribe("j1")
	_, unsub2 := b.Subscribe("j1")

	unsub1()
	if n := b.Topics(); n != 1 {
		t.Fatalf("Topics() with one subscriber left = %d, want 1", n)
	}
	unsub2()
	if n := b.Topics(); n != 0 {
		t.Errorf("Topics() after last unsubscribe = %d, want 0", n)
	}
}

func TestStatusBrokerCloseWithoutSubscribersUntilForget(t *testing.T) {
	b := engine.NewStatusBroker()
	for i := range 100 {
		id := fmt.Sprintf("job-%d", i)
		b.Publish(event(id, model.StatusDone))
		b.Close(id)
		b.Forget(id)
	}
	if n := b.Topics(); n != 0 {
		t.Errorf("Topics() = %d, want 0", n)
	}
}
