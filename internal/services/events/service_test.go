package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	got := make([]string, 0, 2)

	handler := func(name string) interfaces.EventHandler {
		return func(ctx context.Context, event interfaces.Event) error {
			mu.Lock()
			got = append(got, name)
			mu.Unlock()
			wg.Done()
			return nil
		}
	}

	if err := svc.Subscribe(interfaces.EventTaskStateChanged, handler("a")); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := svc.Subscribe(interfaces.EventTaskStateChanged, handler("b")); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	err := svc.Publish(context.Background(), interfaces.Event{
		Type:      interfaces.EventTaskStateChanged,
		Timestamp: time.Now(),
		Payload:   map[string]interface{}{"task_id": "task_1"},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Handlers did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("Expected 2 handler invocations, got %d", len(got))
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	if err := svc.Subscribe(interfaces.EventSegmentCreated, nil); err == nil {
		t.Fatal("Expected error for nil handler")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	err := svc.Publish(context.Background(), interfaces.Event{
		Type:      interfaces.EventSegmentCreated,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("Publish to empty bus must succeed, got %v", err)
	}
}
