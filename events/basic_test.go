package events

import "testing"

func TestSubscribeAndEmit(t *testing.T) {
	type TestNotif1 struct{}
	type TestNotif2 struct{}

	bus := NewBus()

	sub1, err := bus.Subscribe(&TestNotif1{})
	if err != nil {
		t.Fatal(err)
	}

	sub2, err := bus.Subscribe(&TestNotif2{})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		bus.Emit(&TestNotif1{})
		bus.Emit(&TestNotif2{})
	}()

	notif1 := <-sub1.Out()
	_, ok := notif1.(*TestNotif1)
	if !ok {
		t.Error("Notification is wrong type")
	}

	notif2 := <-sub2.Out()
	_, ok = notif2.(*TestNotif2)
	if !ok {
		t.Error("Notification is wrong type")
	}

	if err := sub1.Close(); err != nil {
		t.Error(err)
	}

	if err := sub2.Close(); err != nil {
		t.Error(err)
	}
}

func TestSubscribeMultipleTypes(t *testing.T) {
	type TestNotif3 struct{}
	type TestNotif4 struct{}

	bus := NewBus()

	sub, err := bus.Subscribe([]interface{}{&TestNotif3{}, &TestNotif4{}})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		bus.Emit(&TestNotif3{})
		bus.Emit(&TestNotif4{})
	}()

	notif := <-sub.Out()
	if _, ok := notif.(*TestNotif3); !ok {
		t.Error("Notification is wrong type")
	}

	notif = <-sub.Out()
	if _, ok := notif.(*TestNotif4); !ok {
		t.Error("Notification is wrong type")
	}

	if err := sub.Close(); err != nil {
		t.Error(err)
	}

	// Emitting after close should not panic or deliver.
	bus.Emit(&TestNotif3{})
}
