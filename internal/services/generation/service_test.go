package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/services/llm"
)

// capturingText records the messages it was asked to complete.
type capturingText struct {
	messages []interfaces.Message
	reply    string
	err      error
}

func (c *capturingText) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	c.messages = messages
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}
func (c *capturingText) GetMode() interfaces.LLMMode           { return interfaces.LLMModeOffline }
func (c *capturingText) HealthCheck(ctx context.Context) error { return nil }
func (c *capturingText) Close() error                          { return nil }

type stubImage struct {
	ref string
	err error
}

func (s *stubImage) GenerateImage(ctx context.Context, prompt, style string) (string, error) {
	return s.ref, s.err
}
func (s *stubImage) GetMode() interfaces.LLMMode           { return interfaces.LLMModeOffline }
func (s *stubImage) HealthCheck(ctx context.Context) error { return nil }
func (s *stubImage) Close() error                          { return nil }

func TestGenerateSegmentAssemblesPrompt(t *testing.T) {
	text := &capturingText{reply: "The keeper stepped through."}
	svc := NewService(text, &stubImage{}, true, nil, arbor.NewLogger())

	got, err := svc.GenerateSegment(context.Background(), "He found a door.\n\nIt glowed faintly.", "open the door")
	if err != nil {
		t.Fatalf("GenerateSegment failed: %v", err)
	}
	if got != "The keeper stepped through." {
		t.Errorf("Unexpected generation result: %q", got)
	}

	if len(text.messages) != 2 {
		t.Fatalf("Expected system + user message, got %d", len(text.messages))
	}
	if text.messages[0].Role != "system" {
		t.Errorf("Expected system message first, got %s", text.messages[0].Role)
	}

	user := text.messages[1].Content
	if !strings.Contains(user, "He found a door.") {
		t.Errorf("Expected retrieval context in prompt, got %q", user)
	}
	if !strings.Contains(user, "open the door") {
		t.Errorf("Expected user prompt in prompt, got %q", user)
	}
}

func TestGenerateSegmentEmptyContextUsesSentinel(t *testing.T) {
	text := &capturingText{reply: "It begins."}
	svc := NewService(text, &stubImage{}, true, nil, arbor.NewLogger())

	if _, err := svc.GenerateSegment(context.Background(), "", "begin"); err != nil {
		t.Fatalf("GenerateSegment failed: %v", err)
	}

	if !strings.Contains(text.messages[1].Content, NoContextSentinel) {
		t.Errorf("Expected sentinel for empty context, got %q", text.messages[1].Content)
	}
}

func TestGenerateSegmentFailSoftPlaceholder(t *testing.T) {
	text := &capturingText{err: errors.New("backend down")}
	svc := NewService(text, &stubImage{}, true, nil, arbor.NewLogger())

	got, err := svc.GenerateSegment(context.Background(), "ctx", "continue the hunt")
	if err != nil {
		t.Fatalf("fail_soft must not surface backend errors, got %v", err)
	}
	if got != llm.PlaceholderSegment("continue the hunt") {
		t.Errorf("Expected placeholder continuation, got %q", got)
	}
}

func TestGenerateSegmentFailHard(t *testing.T) {
	text := &capturingText{err: errors.New("backend down")}
	svc := NewService(text, &stubImage{}, false, nil, arbor.NewLogger())

	if _, err := svc.GenerateSegment(context.Background(), "ctx", "continue"); err == nil {
		t.Fatal("fail_hard must surface backend errors")
	}
}

func TestGenerateImageHasNoFallback(t *testing.T) {
	svc := NewService(&capturingText{reply: "x"}, &stubImage{err: errors.New("quota")}, true, nil, arbor.NewLogger())

	// Image generation fails the task even under fail_soft.
	if _, err := svc.GenerateImage(context.Background(), "a tower", ""); err == nil {
		t.Fatal("Expected image generation error to propagate")
	}
}
