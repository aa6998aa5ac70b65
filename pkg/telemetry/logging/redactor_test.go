package logging

import (
	"errors"
	"reflect"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactorFor("/home/dev/")

	tests := []struct {
		in   string
		want string
	}{
		{"/home/dev/site/a.twig", "~/site/a.twig"},
		{"failed to read /home/dev/x", "failed to read ~/x"},
		{"/srv/templates/a.twig", "/srv/templates/a.twig"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := r.RedactString(tt.in); got != tt.want {
			t.Errorf("RedactString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactor_RedactArgs(t *testing.T) {
	r := NewRedactorFor("/home/dev")

	args := []any{
		"path", "/home/dev/a.twig",
		"deps", []string{"/home/dev/b.twig", "/srv/c.twig"},
		"err", errors.New("open /home/dev/d.twig: denied"),
		"count", 3,
	}
	got := r.RedactArgs(args...)
	want := []any{
		"path", "~/a.twig",
		"deps", []string{"~/b.twig", "/srv/c.twig"},
		"err", "open ~/d.twig: denied",
		"count", 3,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RedactArgs() = %v, want %v", got, want)
	}
	if args[1] != "/home/dev/a.twig" {
		t.Error("RedactArgs must not modify its input")
	}
}

func TestRedactor_NoHome(t *testing.T) {
	r := NewRedactorFor("")
	if got := r.RedactString("/home/dev/a"); got != "/home/dev/a" {
		t.Errorf("expected unchanged value, got %q", got)
	}
}
