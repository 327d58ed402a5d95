package httpmiddleware

import "testing"

func TestRateLimiterBurstThenReject(t *testing.T) {
	l := NewRateLimiter(5)
	lim := l.limiterFor("1.2.3.4")
	for i := 0; i < 5; i++ {
		if !lim.Allow() {
			t.Fatalf("request %d within burst rejected", i)
		}
	}
	if lim.Allow() {
		t.Fatal("request beyond burst allowed")
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	l := NewRateLimiter(1)
	if !l.limiterFor("a").Allow() {
		t.Fatal("first client rejected")
	}
	if l.limiterFor("a").Allow() {
		t.Fatal("first client not limited")
	}
	if !l.limiterFor("b").Allow() {
		t.Fatal("second client must have its own bucket")
	}
}
