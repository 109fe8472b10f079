package trackpoint

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestMarshalLineRoundTrip(t *testing.T) {
	at := time.UnixMilli(1731952467000)
	tp := New(46.9292804, -114.0877518, 965.6, 12.34, at)
	tp.Lean = -23.5
	tp.Accel = 1.204

	got, err := UnmarshalLine(tp.MarshalLine())
	if err != nil {
		t.Fatal(err)
	}
	if *got != *tp {
		t.Fatalf("round trip mismatch: %+v != %+v", got, tp)
	}
}

func TestMarshalLineAbsentInertial(t *testing.T) {
	tp := New(46.9, -114.0, 0, 3.2, time.UnixMilli(1731952467000))
	line := tp.MarshalLine()
	if !strings.HasSuffix(line, ",,") {
		t.Fatalf("expected blank lean/accel fields, got %q", line)
	}
	got, err := UnmarshalLine(line)
	if err != nil {
		t.Fatal(err)
	}
	if got.HasLean() || got.HasAccel() {
		t.Fatalf("expected NaN lean/accel, got %v %v", got.Lean, got.Accel)
	}
}

func TestUnmarshalLineErrors(t *testing.T) {
	cases := []string{
		"",
		"1,2,3",
		"abc,0,0,1000,0,,",
		"91,0,0,1000,0,,",   // lat out of range
		"0,181,0,1000,0,,",  // lon out of range
		"0,0,0,0,0,,",       // zero time
		"0,0,0,1000,0,x,",   // bad lean
	}
	for _, line := range cases {
		if _, err := UnmarshalLine(line); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

func TestJSONOmitsAbsentInertial(t *testing.T) {
	tp := New(1, 2, 3, 4, time.UnixMilli(1000))
	b, err := json.Marshal(tp)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "lean") || strings.Contains(string(b), "accel") {
		t.Fatalf("NaN fields should be omitted: %s", b)
	}

	back := &TrackPoint{}
	if err := json.Unmarshal(b, back); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(back.Lean) || !math.IsNaN(back.Accel) {
		t.Fatalf("absent fields should decode to NaN: %+v", back)
	}

	tp.Lean = 30.0
	b, err = json.Marshal(tp)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"lean":30`) {
		t.Fatalf("present lean should encode: %s", b)
	}
}

func TestSlicesSortFunc(t *testing.T) {
	a := New(0, 0, 0, 0, time.UnixMilli(2000))
	b := New(0, 0, 0, 0, time.UnixMilli(1000))
	if SlicesSortFunc(a, b) <= 0 {
		t.Fatal("expected a > b")
	}
	if SlicesSortFunc(b, a) >= 0 {
		t.Fatal("expected b < a")
	}
	if SlicesSortFunc(a, a) != 0 {
		t.Fatal("expected equality")
	}
}
