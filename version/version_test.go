package version

import "testing"

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"bare", Info{Version: "dev"}, "dev"},
		{"commit", Info{Version: "1.4.0", Commit: "abc1234"}, "1.4.0-abc1234"},
		{"dirty", Info{Version: "1.4.0", Commit: "abc1234", Dirty: true}, "1.4.0-abc1234-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetUsesLinkTimeValues(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "2.0.0", "0123456789abcdef"
	info := Get()
	if info.Version != "2.0.0" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.Commit != "0123456" {
		t.Errorf("Commit = %q, want shortened link-time commit", info.Commit)
	}
}
