package notify

import (
	"encoding/json"
	"testing"
	"time"
)

func recvOne(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublishReachesSubscriber(t *testing.T) {
	n := New(nil)
	sub := n.Subscribe("job-1")
	defer n.Unsubscribe(sub)

	n.Publish("job-1", Progress(40, "recognizing text"))

	ev := recvOne(t, sub)
	if ev.Type != TypeProgress || ev.Percent != 40 || ev.Message != "recognizing text" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestPublishOrderPreserved(t *testing.T) {
	n := New(nil)
	sub := n.Subscribe("job-1")
	defer n.Unsubscribe(sub)

	percents := []int{15, 40, 75, 90}
	for _, p := range percents {
		n.Publish("job-1", Progress(p, ""))
	}
	n.Publish("job-1", Completed("done"))

	for _, want := range percents {
		if got := recvOne(t, sub).Percent; got != want {
			t.Fatalf("got percent %d, want %d", got, want)
		}
	}
	if ev := recvOne(t, sub); ev.Type != TypeCompleted {
		t.Fatalf("final event type = %q", ev.Type)
	}
}

func TestEventsScopedToJob(t *testing.T) {
	n := New(nil)
	sub1 := n.Subscribe("job-1")
	sub2 := n.Subscribe("job-2")
	defer n.Unsubscribe(sub1)
	defer n.Unsubscribe(sub2)

	n.Publish("job-1", Failure("engine exploded"))

	if ev := recvOne(t, sub1); ev.Type != TypeError {
		t.Fatalf("job-1 event = %+v", ev)
	}
	select {
	case ev := <-sub2.Events():
		t.Fatalf("job-2 subscriber received foreign event %+v", ev)
	default:
	}
}

func TestNoSubscribersIsNoop(t *testing.T) {
	n := New(nil)
	n.Publish("nobody-listening", Progress(15, ""))

	// Late subscriber sees nothing of the past.
	sub := n.Subscribe("nobody-listening")
	defer n.Unsubscribe(sub)
	select {
	case ev := <-sub.Events():
		t.Fatalf("late subscriber got replayed event %+v", ev)
	default:
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	n := New(nil)
	a := n.Subscribe("job-1")
	b := n.Subscribe("job-1")
	defer n.Unsubscribe(a)
	defer n.Unsubscribe(b)

	n.Publish("job-1", Progress(75, "correcting"))

	if ev := recvOne(t, a); ev.Percent != 75 {
		t.Fatalf("a got %+v", ev)
	}
	if ev := recvOne(t, b); ev.Percent != 75 {
		t.Fatalf("b got %+v", ev)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	n := New(nil)
	sub := n.Subscribe("job-1")
	n.Unsubscribe(sub)

	if _, ok := <-sub.Events(); ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	if got := n.Subscribers("job-1"); got != 0 {
		t.Fatalf("subscribers = %d, want 0", got)
	}
	// Second call must not panic.
	n.Unsubscribe(sub)
}

func TestStalledSubscriberDropped(t *testing.T) {
	n := New(nil)
	stuck := n.Subscribe("job-1")
	healthy := n.Subscribe("job-1")
	defer n.Unsubscribe(healthy)

	// Fill the stuck subscriber's buffer; the healthy one keeps reading.
	for i := 0; i < DefaultBuffer; i++ {
		n.Publish("job-1", Progress(i, ""))
		recvOne(t, healthy)
	}
	// This one overflows stuck and must still reach healthy.
	n.Publish("job-1", Completed(nil))

	if got := n.Subscribers("job-1"); got != 1 {
		t.Fatalf("subscribers after overflow = %d, want 1", got)
	}
	if ev := recvOne(t, healthy); ev.Type != TypeCompleted {
		t.Fatalf("healthy subscriber final event = %+v", ev)
	}

	// Stuck subscriber can drain its buffer, then sees close.
	for i := 0; i < DefaultBuffer; i++ {
		<-stuck.Events()
	}
	if _, ok := <-stuck.Events(); ok {
		t.Fatal("stuck subscriber channel should be closed")
	}
}

func TestEventJSONShapes(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want string
	}{
		{"progress", Progress(40, "recognizing text"), `{"type":"progress","percent":40,"message":"recognizing text"}`},
		{"completed", Completed(map[string]string{"text": "hello"}), `{"type":"completed","percent":100,"result":{"text":"hello"}}`},
		{"error", Failure("engine unavailable"), `{"type":"error","message":"engine unavailable"}`},
	}
	for _, tc := range cases {
		got, err := json.Marshal(tc.ev)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if string(got) != tc.want {
			t.Fatalf("%s:\n got %s\nwant %s", tc.name, got, tc.want)
		}
	}
}
