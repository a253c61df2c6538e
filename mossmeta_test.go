package mossmeta

import (
	"context"
	"errors"
	"testing"
)

type fakeRefresher struct {
	err error
}

func (f fakeRefresher) Refresh(ctx context.Context) error {
	return f.err
}

func TestRefreshAllReportsPerRemote(t *testing.T) {
	remotes := map[string]Refresher{
		"ok":   fakeRefresher{},
		"fail": fakeRefresher{err: errors.New("network down")},
	}

	results := RefreshAll(context.Background(), remotes)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	if AllFailed(results) {
		t.Error("expected AllFailed false with one success")
	}
}

func TestAllFailedWhenEveryRemoteErrors(t *testing.T) {
	remotes := map[string]Refresher{
		"a": fakeRefresher{err: errors.New("x")},
		"b": fakeRefresher{err: errors.New("y")},
	}
	results := RefreshAll(context.Background(), remotes)
	if !AllFailed(results) {
		t.Error("expected AllFailed true when every remote errors")
	}
}

func TestNewInstallationDefaultsRoot(t *testing.T) {
	i := NewInstallation("")
	if i.Root != "/" {
		t.Errorf("got root %q, want /", i.Root)
	}
}

func TestParsePURL(t *testing.T) {
	// generic PURL syntax, independent of any ecosystem this module defines
	// itself; exercises the re-exported parser without depending on
	// git-pkgs/purl accepting a "stone" type.
	p, err := ParsePURL("pkg:cargo/serde@1.0.0")
	if err != nil {
		t.Fatalf("ParsePURL: %v", err)
	}
	if p == nil {
		t.Fatal("expected a non-nil PURL")
	}
}

func TestSupportedPluginKindsStartsEmptyWithoutAllImport(t *testing.T) {
	// mossmeta_test.go deliberately does not import the all package, so no
	// plugin kind should be registered as a side effect of this package
	// alone.
	for _, kind := range SupportedPluginKinds() {
		if kind == "remote" || kind == "cobble" || kind == "installed" {
			t.Errorf("plugin kind %q registered without importing the all package", kind)
		}
	}
}
