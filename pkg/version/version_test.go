package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform should be os/arch, got %q", info.Platform)
	}
}

func TestBuildInfoString(t *testing.T) {
	orig := Version
	Version = "1.2.3"
	defer func() { Version = orig }()

	if s := GetBuildInfo().String(); !strings.Contains(s, "form-relay 1.2.3") {
		t.Errorf("unexpected String(): %q", s)
	}
}
