package rotation

import (
	"reflect"
	"strings"
	"testing"
)

func TestValidIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"@group", true},
		{"-1001234567890", true},
		{"123456", true},
		{"@", false},
		{"-", false},
		{"", false},
		{"group", false},
		{"12a4", false},
	}
	for _, tc := range cases {
		if got := ValidIdentifier(tc.in); got != tc.want {
			t.Errorf("ValidIdentifier(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseSourceDefs(t *testing.T) {
	got, err := ParseSourceDefs([]string{
		"@group_a",
		`@group_b:"Main Chat"`,
		"-100123:Archive",
	})
	if err != nil {
		t.Fatalf("ParseSourceDefs: %v", err)
	}
	want := []Source{
		{ID: "@group_a"},
		{ID: "@group_b", Alias: "Main Chat"},
		{ID: "-100123", Alias: "Archive"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseSourceDefsRejectsWholeBatch(t *testing.T) {
	_, err := ParseSourceDefs([]string{"@ok", "not_an_identifier", "@also_ok"})
	if err == nil {
		t.Fatal("expected error for invalid identifier")
	}
	if !strings.Contains(err.Error(), "not_an_identifier") {
		t.Fatalf("error should name the bad definition, got: %v", err)
	}
}

func TestParseSourceDefsAliasKeepsColons(t *testing.T) {
	// command tokenization strips surrounding quotes, so a quoted alias
	// containing a colon arrives as a bare `id:rest:of:alias` definition
	got, err := ParseSourceDefs([]string{"@grp:Team A: EU", `-100123:"X: Y"`})
	if err != nil {
		t.Fatalf("ParseSourceDefs: %v", err)
	}
	if got[0].Alias != "Team A: EU" {
		t.Fatalf("alias = %q, want %q", got[0].Alias, "Team A: EU")
	}
	if got[1].Alias != "X: Y" {
		t.Fatalf("alias = %q, want %q", got[1].Alias, "X: Y")
	}
}

func TestParseSourceDefsEmpty(t *testing.T) {
	if _, err := ParseSourceDefs(nil); err == nil {
		t.Fatal("expected error for empty definitions")
	}
}

func TestParseSourceDefsTrimsAlias(t *testing.T) {
	got, err := ParseSourceDefs([]string{`@g:"  padded  "`})
	if err != nil {
		t.Fatalf("ParseSourceDefs: %v", err)
	}
	if got[0].Alias != "padded" {
		t.Fatalf("alias = %q, want %q", got[0].Alias, "padded")
	}
}
