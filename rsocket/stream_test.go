package rsocket

import "testing"

func TestAddSaturatingClampsAtMaxDemand(t *testing.T) {
	cases := []struct {
		a, b, want uint32
	}{
		{0, 5, 5},
		{maxDemand, 1, maxDemand},
		{maxDemand - 1, 2, maxDemand},
		{1 << 30, 1 << 30, maxDemand},
	}
	for _, c := range cases {
		if got := addSaturating(c.a, c.b); got != c.want {
			t.Errorf("addSaturating(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestStreamEntryTerminated(t *testing.T) {
	e := &streamEntry{localHalf: HalfOpen, remoteHalf: HalfOpen}
	if e.terminated() {
		t.Fatal("both halves open should not be terminated")
	}
	e.localHalf = HalfClosed
	if e.terminated() {
		t.Fatal("one half closed should not be terminated")
	}
	e.remoteHalf = HalfClosed
	if !e.terminated() {
		t.Fatal("both halves closed should be terminated")
	}
}
