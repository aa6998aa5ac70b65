package keys

import (
	"regexp"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{input: "", want: Development},
		{input: "development", want: Development},
		{input: " Production ", want: Production},
		{input: "staging", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/srv/templates/a.twig", want: "/srv/templates/a.twig"},
		{path: `C:\templates\a.twig`, want: "C:/templates/a.twig"},
		{path: `mixed\dir/a.twig`, want: "mixed/dir/a.twig"},
		{path: `\\?\C:\very\long\path.twig`, want: `\\?\C:\very\long\path.twig`},
		{path: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Normalize(tt.path); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestDeriver_Development(t *testing.T) {
	d := NewDeriver(Development)
	if got := d.Key("/srv/a.twig"); got != "/srv/a.twig" {
		t.Errorf("Key() = %q, want the path unchanged", got)
	}
	if got := d.PathKey(`C:\srv\a.twig`); got != "C:/srv/a.twig" {
		t.Errorf("PathKey() = %q, want normalized path", got)
	}
}

func TestDeriver_Production(t *testing.T) {
	d := NewDeriver(Production)
	hexKey := regexp.MustCompile(`^[0-9a-f]{64}$`)

	got := d.Key("/srv/a.twig")
	if !hexKey.MatchString(got) {
		t.Fatalf("Key() = %q, want 64 lower-case hex characters", got)
	}
	if got != d.Key("/srv/a.twig") {
		t.Error("Key() is not deterministic")
	}
	if got == d.Key("/srv/b.twig") {
		t.Error("different paths derived the same key")
	}
	if d.PathKey(`\srv\a.twig`) != got {
		t.Error("PathKey() should normalize before hashing")
	}
}

func TestDeriver_KnownDigest(t *testing.T) {
	// Digest of the empty string.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := NewDeriver(Production).Key(""); got != empty {
		t.Errorf("Key(\"\") = %q, want %q", got, empty)
	}
}

func TestDeriver_Func(t *testing.T) {
	f := NewDeriver(Development).Func()
	if got := f("a/b.twig"); got != "a/b.twig" {
		t.Errorf("Func()(path) = %q", got)
	}
}
