package statedb

import (
	"testing"

	"github.com/git-pkgs/mossmeta/internal/core"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []core.StateEntry{
		{StateID: 1, Identifier: "foo", Type: core.Binary, Flags: core.UserInstalled},
		{StateID: 42, Identifier: "a-longer-package-name", Type: core.Source, Flags: core.DepInstalled | core.Hold},
		{StateID: 0, Identifier: "x", Type: core.Binary, Flags: core.DefaultPolicy},
	}

	for _, e := range cases {
		got, err := decodeEntry(encodeEntry(e))
		if err != nil {
			t.Fatalf("decodeEntry: %v", err)
		}
		if got != e {
			t.Errorf("round-trip mismatch: got %+v, want %+v", got, e)
		}
	}
}

func TestDecodeEntryTruncatedHeader(t *testing.T) {
	if _, err := decodeEntry([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestDecodeEntryMissingNULTerminator(t *testing.T) {
	blob := encodeEntry(core.StateEntry{StateID: 1, Identifier: "foo"})
	blob[len(blob)-1] = 'x' // corrupt the terminator
	if _, err := decodeEntry(blob); err == nil {
		t.Error("expected error for missing NUL terminator")
	}
}

func TestSelectionKeyOrdersByStateIDThenIdentifier(t *testing.T) {
	k1 := selectionKey(1, "foo")
	k2 := selectionKey(2, "aaa")
	if k1 >= k2 {
		t.Errorf("expected state 1's keys to sort before state 2's: %q >= %q", k1, k2)
	}
}
