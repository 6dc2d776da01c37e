package config

import "testing"

func TestNewBuildInfo_Unstamped(t *testing.T) {
	info := NewBuildInfo()

	if info != (BuildInfo{Version: "dev", Commit: "none", BuildTime: "unknown"}) {
		t.Errorf("NewBuildInfo() = %+v", info)
	}
}

func TestNewBuildInfo_Stamped(t *testing.T) {
	restore := func(v, c, b string) func() {
		return func() { version, commit, buildTime = v, c, b }
	}(version, commit, buildTime)
	t.Cleanup(restore)
	version, commit, buildTime = "2.4.0", "9f1c2ab", "2025-10-10T08:00:00Z"

	info := NewBuildInfo()

	if info.Version != "2.4.0" || info.Commit != "9f1c2ab" || info.BuildTime != "2025-10-10T08:00:00Z" {
		t.Errorf("NewBuildInfo() = %+v", info)
	}
}

func TestBuildInfo_UserAgent(t *testing.T) {
	tests := []struct {
		info BuildInfo
		want string
	}{
		{BuildInfo{Version: "dev", Commit: "none"}, "SkyRisk/dev"},
		{BuildInfo{Version: "2.4.0", Commit: "9f1c2ab"}, "SkyRisk/2.4.0 (9f1c2ab)"},
		{BuildInfo{Version: "2.4.0"}, "SkyRisk/2.4.0"},
	}
	for _, tt := range tests {
		if got := tt.info.UserAgent(); got != tt.want {
			t.Errorf("UserAgent(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}
}
