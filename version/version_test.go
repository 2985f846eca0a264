package version

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"version only", Info{Version: "1.2.0"}, "1.2.0"},
		{"with commit", Info{Version: "1.2.0", Commit: "abc1234"}, "1.2.0-abc1234"},
		{"dirty", Info{Version: "dev", Commit: "abc1234", Dirty: true}, "dev-abc1234-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetUsesLdflags(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version = "9.9.9"
	Commit = "feedface"

	info := Get()
	if info.Version != "9.9.9" {
		t.Errorf("Version = %s, want 9.9.9", info.Version)
	}
	if info.Commit != "feedface" {
		t.Errorf("Commit = %s, want feedface", info.Commit)
	}
}
