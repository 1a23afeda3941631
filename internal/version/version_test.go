package version

import "testing"

func TestInfoString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		info Info
		want string
	}{
		{info: Info{Version: "dev"}, want: "dev"},
		{info: Info{Version: "v1.0.0", Commit: "0123456789abcdef"}, want: "v1.0.0 (0123456)"},
		{info: Info{Version: "v1.0.0", Commit: "abc"}, want: "v1.0.0 (abc)"},
	}
	for _, tt := range tests {
		if got := tt.info.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestGetReportsGoVersion(t *testing.T) {
	t.Parallel()

	if Get().GoVersion == "" {
		t.Fatal("expected go version")
	}
}
