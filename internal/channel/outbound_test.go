package channel

import (
	"strings"
	"testing"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "empty", text: "", limit: 10, want: nil},
		{name: "fits", text: "  hello  ", limit: 10, want: []string{"  hello  "}},
		{name: "no limit", text: "abcdef", limit: 0, want: []string{"abcdef"}},
		{name: "hard cut", text: "abcdefgh", limit: 3, want: []string{"abc", "def", "gh"}},
		{name: "prefers newline", text: "abcd\nefghij", limit: 6, want: []string{"abcd\n", "efghij"}},
		{name: "runes", text: "привет", limit: 4, want: []string{"прив", "ет"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitText(tt.text, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("chunk %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
			if strings.Join(got, "") != tt.text {
				t.Fatalf("chunks do not reassemble the text")
			}
		})
	}
}
