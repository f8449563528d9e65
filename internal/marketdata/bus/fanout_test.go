package bus

import (
	"testing"
	"time"

	"github.com/nestcub/autotrader/internal/model"
)

func event(t string) model.Event {
	return model.Event{Type: t, Data: []byte(`{}`)}
}

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe("gateway")
	out2 := fo.Subscribe("redis")

	fo.Publish(event(model.EventStocksUpdated))

	for i, ch := range []<-chan model.Event{out1, out2} {
		select {
		case ev := <-ch:
			if ev.Type != model.EventStocksUpdated {
				t.Errorf("out%d: got %s", i+1, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("out%d: timed out", i+1)
		}
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New(1)
	slow := fo.Subscribe("slow")
	fast := fo.Subscribe("fast")

	var dropped []string
	fo.OnDrop = func(name string, _ model.Event) { dropped = append(dropped, name) }

	fo.Publish(event("a"))
	<-fast
	fo.Publish(event("b")) // slow is still full

	if len(dropped) != 1 || dropped[0] != "slow" {
		t.Fatalf("dropped = %v, want [slow]", dropped)
	}
	if ev := <-slow; ev.Type != "a" {
		t.Fatalf("slow kept %s, want a", ev.Type)
	}
	if ev := <-fast; ev.Type != "b" {
		t.Fatalf("fast got %s, want b", ev.Type)
	}
}

func TestFanOut_Close(t *testing.T) {
	fo := New(2)
	ch := fo.Subscribe("x")
	fo.Close()
	fo.Close()
	fo.Publish(event("ignored"))

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	late := fo.Subscribe("late")
	if _, ok := <-late; ok {
		t.Fatal("subscribing after Close should yield a closed channel")
	}
}

func TestFanOut_ChannelStats(t *testing.T) {
	fo := New(4)
	fo.Subscribe("a")
	fo.Publish(event("x"))

	stats := fo.ChannelStats()
	if len(stats) != 1 || stats[0].Name != "a" || stats[0].Len != 1 || stats[0].Cap != 4 {
		t.Fatalf("stats = %+v", stats)
	}
}
