package rotation

import (
	"errors"
	"strings"
	"testing"

	"linkguard/pkg/logx"
)

func TestRenderLinksListRoundTrip(t *testing.T) {
	sources := []Source{
		{ID: "@main", Alias: "Main"},
		{ID: "@grp"},
	}
	results := []LinkResult{
		{Source: sources[0], Link: "https://t.me/+abc"},
		{Source: sources[1], Err: errPlatform},
	}

	got := Render("Join here:\n{links_list}\nbye", sources, results, logx.Nop())
	want := "Join here:\nMain: https://t.me/+abc\n<code>@grp</code>: Not available\nbye"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	sources := []Source{{ID: "@a"}, {ID: "@b", Alias: "B"}}
	results := []LinkResult{
		{Source: sources[0], Link: "https://t.me/+one"},
		{Source: sources[1], Link: "https://t.me/+two"},
	}
	first := Render("<b>Links</b>\n{links_list}", sources, results, logx.Nop())
	for i := 0; i < 3; i++ {
		if again := Render("<b>Links</b>\n{links_list}", sources, results, logx.Nop()); again != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, again, first)
		}
	}
}

func TestRenderUnknownPlaceholderFallsBack(t *testing.T) {
	sources := []Source{{ID: "@a"}}
	results := []LinkResult{{Source: sources[0], Link: "https://t.me/+x"}}

	got := Render("{links_list} and {bogus}", sources, results, logx.Nop())
	if !strings.HasPrefix(got, "<b>Updated Invite Links:</b>\n") {
		t.Fatalf("expected fallback format, got: %s", got)
	}
	if !strings.Contains(got, "https://t.me/+x") {
		t.Fatalf("fallback should still carry the links block, got: %s", got)
	}
}

// A template mixing {links_list} with {invite_link} is treated as a
// formatting failure: in the links-list path only {links_list} is known.
func TestRenderMixedPlaceholdersFallsBack(t *testing.T) {
	sources := []Source{{ID: "@a"}}
	results := []LinkResult{{Source: sources[0], Link: "https://t.me/+x"}}

	got := Render("{links_list} {invite_link}", sources, results, logx.Nop())
	if !strings.HasPrefix(got, "<b>Updated Invite Links:</b>\n") {
		t.Fatalf("expected fallback format, got: %s", got)
	}
}

func TestRenderLegacyInviteLinkUsesFirstSuccess(t *testing.T) {
	sources := []Source{{ID: "@a"}, {ID: "@b"}, {ID: "@c"}}
	results := []LinkResult{
		{Source: sources[0], Err: errPlatform},
		{Source: sources[1], Link: "https://t.me/+first"},
		{Source: sources[2], Link: "https://t.me/+second"},
	}
	got := Render("<b>Secure Access</b>: {invite_link}", sources, results, logx.Nop())
	want := "<b>Secure Access</b>: https://t.me/+first"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderNoPlaceholderUsesDefault(t *testing.T) {
	sources := []Source{{ID: "@a", Alias: "A"}}
	results := []LinkResult{{Source: sources[0], Link: "https://t.me/+x"}}

	got := Render("just some text", sources, results, logx.Nop())
	want := "<b>Updated Invite Links:</b>\nA: https://t.me/+x"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildLinksBlockLengthMismatch(t *testing.T) {
	sources := []Source{{ID: "@only"}}
	results := []LinkResult{
		{Source: sources[0], Link: "https://t.me/+x"},
		{Link: "https://t.me/+stray"},
	}
	got := BuildLinksBlock(sources, results)
	if !strings.Contains(got, "<code>Unknown Source 2</code>: https://t.me/+stray") {
		t.Fatalf("expected synthetic label for extra result, got:\n%s", got)
	}
}

func TestSubstituteClosedSet(t *testing.T) {
	out, err := substitute("a {x} b {x}", map[string]string{"x": "1"})
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if out != "a 1 b 1" {
		t.Fatalf("got %q", out)
	}

	_, err = substitute("a {y}", map[string]string{"x": "1"})
	var upErr *ErrUnknownPlaceholder
	if !errors.As(err, &upErr) || upErr.Name != "y" {
		t.Fatalf("expected unknown placeholder error for y, got: %v", err)
	}
}
