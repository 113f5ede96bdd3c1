package rtc

import (
	"testing"
	"time"
)

func TestClockStartsUnset(t *testing.T) {
	var c Clock
	if got := c.Quality(); got != QualityNone {
		t.Errorf("zero clock quality = %v, want %v", got, QualityNone)
	}
	// Now falls back to the local clock before the first Set.
	if d := time.Since(c.Now()); d < -time.Second || d > time.Second {
		t.Errorf("unset clock drifted from local time by %v", d)
	}
}

func TestSetRejectsLowerQuality(t *testing.T) {
	var c Clock
	ntpTime := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	if !c.Set(QualityNTP, ntpTime) {
		t.Fatal("first set rejected")
	}
	if c.Set(QualityFromNet, ntpTime.Add(time.Hour)) {
		t.Error("coarse network time overwrote an NTP reading")
	}
	if got := c.Quality(); got != QualityNTP {
		t.Errorf("quality = %v after rejected set, want %v", got, QualityNTP)
	}
}

func TestSetAcceptsEqualAndHigherQuality(t *testing.T) {
	var c Clock
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	if !c.Set(QualityNTP, base) {
		t.Fatal("first set rejected")
	}
	// Equal quality refreshes; this is how the hourly resync lands.
	if !c.Set(QualityNTP, base.Add(time.Hour)) {
		t.Error("equal-quality refresh rejected")
	}
	if !c.Set(QualityGPS, base.Add(2*time.Hour)) {
		t.Error("higher-quality set rejected")
	}
	if got := c.Quality(); got != QualityGPS {
		t.Errorf("quality = %v, want %v", got, QualityGPS)
	}
}

func TestSetRejectsZeroTime(t *testing.T) {
	var c Clock
	if c.Set(QualityGPS, time.Time{}) {
		t.Error("zero timestamp accepted")
	}
	if got := c.Quality(); got != QualityNone {
		t.Errorf("quality = %v after zero set, want %v", got, QualityNone)
	}
}

func TestNowTracksAcceptedOffset(t *testing.T) {
	var c Clock
	want := time.Now().Add(3 * time.Hour)
	if !c.Set(QualityNTP, want) {
		t.Fatal("set rejected")
	}
	got := c.Now()
	if d := got.Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("Now = %v, want about %v (off by %v)", got, want, d)
	}
}

func TestAdjustFuncReceivesOffset(t *testing.T) {
	var gotOffset time.Duration
	calls := 0
	c := Clock{AdjustFunc: func(offset time.Duration) {
		gotOffset = offset
		calls++
	}}

	target := time.Now().Add(90 * time.Minute)
	if !c.Set(QualityNTP, target) {
		t.Fatal("set rejected")
	}
	if calls != 1 {
		t.Fatalf("AdjustFunc called %d times, want 1", calls)
	}
	if gotOffset < 89*time.Minute || gotOffset > 91*time.Minute {
		t.Errorf("AdjustFunc offset = %v, want about 90m", gotOffset)
	}

	// A rejected candidate must not slew the system clock.
	c.Set(QualityDevice, time.Now())
	if calls != 1 {
		t.Errorf("AdjustFunc called on rejected set")
	}
}

func TestQualityString(t *testing.T) {
	cases := map[Quality]string{
		QualityNone:    "none",
		QualityDevice:  "device",
		QualityFromNet: "fromnet",
		QualityNTP:     "ntp",
		QualityGPS:     "gps",
		Quality(99):    "invalid",
	}
	for q, want := range cases {
		if got := q.String(); got != want {
			t.Errorf("Quality(%d).String() = %q, want %q", q, got, want)
		}
	}
}
