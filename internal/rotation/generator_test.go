package rotation

import (
	"context"
	"testing"
	"time"

	"linkguard/internal/kit"
	"linkguard/pkg/logx"
)

func TestGeneratePreservesOrderAndLength(t *testing.T) {
	ad := &fakeAdapter{
		inviteFn: func(chat kit.ChatTarget) (string, error) {
			return "https://t.me/+" + chat.Username, nil
		},
	}
	gen := NewGenerator(ad, time.Second, logx.Nop())

	sources := []Source{{ID: "@a"}, {ID: "@b"}, {ID: "@c"}}
	results := gen.Generate(context.Background(), sources, 5*time.Minute, 1)

	if len(results) != len(sources) {
		t.Fatalf("got %d results, want %d", len(results), len(sources))
	}
	for i, r := range results {
		if r.Source.ID != sources[i].ID {
			t.Errorf("result %d is for %s, want %s", i, r.Source.ID, sources[i].ID)
		}
		if !r.OK() {
			t.Errorf("result %d unexpectedly failed: %v", i, r.Err)
		}
	}
	if results[1].Link != "https://t.me/+@b" {
		t.Fatalf("result order broken: %q", results[1].Link)
	}
}

func TestGenerateFailureIsolation(t *testing.T) {
	ad := &fakeAdapter{
		inviteFn: func(chat kit.ChatTarget) (string, error) {
			if chat.Username == "@bad" {
				return "", errPlatform
			}
			return "https://t.me/+ok", nil
		},
	}
	gen := NewGenerator(ad, time.Second, logx.Nop())

	sources := []Source{{ID: "@good1"}, {ID: "@bad"}, {ID: "@good2"}}
	results := gen.Generate(context.Background(), sources, time.Minute, 2)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatal("healthy sources must not be affected by a failing one")
	}
	if results[1].Err == nil {
		t.Fatal("failing source must carry its error")
	}
	if ad.invites != 3 {
		t.Fatalf("all sources must be attempted, got %d calls", ad.invites)
	}
}
