package notify

import (
	"context"
	"testing"
)

func TestUrgencyValues(t *testing.T) {
	// Verify urgency constants match D-Bus spec
	if UrgencyLow != 0 {
		t.Errorf("UrgencyLow = %d, want 0", UrgencyLow)
	}
	if UrgencyNormal != 1 {
		t.Errorf("UrgencyNormal = %d, want 1", UrgencyNormal)
	}
	if UrgencyCritical != 2 {
		t.Errorf("UrgencyCritical = %d, want 2", UrgencyCritical)
	}
}

func TestStubNotifierSwallowsCalls(t *testing.T) {
	var n Notifier = &stubNotifier{}

	id, err := n.Notify(context.Background(), Notification{Title: "x"})
	if err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if id != 0 {
		t.Errorf("Notify() id = %d, want 0 from the stub", id)
	}
	if err := n.Close(context.Background(), 42); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
