package events

import (
	"testing"
)

func TestPublishReachesSubscriber(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(EncounterCreated, func(e Event) {
		got = append(got, e)
	})

	bus.Publish(NewEvent(EncounterCreated, "enc-1"))
	bus.Publish(NewEvent(ConsultationFinalized, "enc-1"))

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Type != EncounterCreated {
		t.Errorf("expected %s, got %s", EncounterCreated, got[0].Type)
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("expected id and timestamp to be set")
	}
}

func TestWildcardSubscriber(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Subscribe("", func(Event) { count++ })

	bus.Publish(NewEvent(EncounterCreated, nil))
	bus.Publish(NewEvent(ReferralStatusChanged, nil))

	if count != 2 {
		t.Errorf("expected wildcard subscriber to see 2 events, got %d", count)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	a, b := 0, 0
	bus.Subscribe(ConsultationFinalized, func(Event) { a++ })
	bus.Subscribe(ConsultationFinalized, func(Event) { b++ })

	bus.Publish(NewEvent(ConsultationFinalized, nil))

	if a != 1 || b != 1 {
		t.Errorf("expected both subscribers called once, got %d and %d", a, b)
	}
}
