package notify

import (
	"context"
	"testing"
)

func TestMultiNotifierFansOut(t *testing.T) {
	first := &countingChannel{}
	second := &countingChannel{}

	notifierA, err := NewNotifier(first, nil)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	notifierB, err := NewNotifier(second, nil)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	multi := NewMultiNotifier(notifierA, nil, notifierB)
	multi.Notify(context.Background(), openEvent("sensor-7"))

	if first.sent != 1 || second.sent != 1 {
		t.Fatalf("expected one delivery per channel, got %d and %d", first.sent, second.sent)
	}
}

func TestMultiNotifierNilReceiver(t *testing.T) {
	var multi *MultiNotifier
	multi.Notify(context.Background(), openEvent("sensor-1"))
}
