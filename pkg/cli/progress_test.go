package cli

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestProgressLines(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		failed []bool
		want   []string
	}{
		{
			name:   "small batch prints every entry",
			total:  3,
			failed: []bool{false, true, false},
			want:   []string{"1/3 entries (0 failed)", "2/3 entries (1 failed)", "3/3 entries (1 failed)"},
		},
		{
			name:   "large batch prints tenths",
			total:  40,
			failed: make([]bool, 40),
			want: []string{
				"4/40 entries (0 failed)", "8/40 entries (0 failed)", "12/40 entries (0 failed)",
				"16/40 entries (0 failed)", "20/40 entries (0 failed)", "24/40 entries (0 failed)",
				"28/40 entries (0 failed)", "32/40 entries (0 failed)", "36/40 entries (0 failed)",
				"40/40 entries (0 failed)",
			},
		},
		{
			name:  "empty batch prints nothing",
			total: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewProgress(&buf)
			p.Start(tt.total)
			for _, f := range tt.failed {
				p.Advance(f)
			}
			p.Finish()

			got := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(tt.want) == 0 {
				if buf.Len() != 0 {
					t.Errorf("output = %q, want none", buf.String())
				}
				return
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("lines = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := &Progress{w: &buf, tty: true}
	p.Start(2)
	p.Advance(false)
	p.Advance(true)
	p.Finish()

	out := buf.String()
	if !strings.Contains(out, "\r[") || !strings.Contains(out, "2/2 entries, 1 failed") {
		t.Errorf("output = %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Finish() did not end the bar line")
	}
}

func TestProgressConcurrent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)
	p.Start(100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Advance(i%10 == 0)
		}(i)
	}
	wg.Wait()

	if p.done != 100 || p.failed != 10 {
		t.Errorf("done = %d, failed = %d, want 100 and 10", p.done, p.failed)
	}
	if !strings.Contains(buf.String(), "100/100 entries (10 failed)") {
		t.Errorf("final line missing: %q", buf.String())
	}
}
