package weather

import (
	"testing"
	"time"
)

func TestNewCoordinateValidation(t *testing.T) {
	cases := []struct {
		lat, lon float64
		wantErr  bool
	}{
		{59.9386, 30.3141, false},
		{-90, 180, false},
		{90.01, 0, true},
		{-90.01, 0, true},
		{0, 180.5, true},
		{0, -181, true},
	}

	for _, tc := range cases {
		_, err := NewCoordinate(tc.lat, tc.lon)
		if tc.wantErr && err == nil {
			t.Errorf("NewCoordinate(%v, %v): expected error", tc.lat, tc.lon)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("NewCoordinate(%v, %v): unexpected error %v", tc.lat, tc.lon, err)
		}
	}
}

func TestCoordinateBucketSharing(t *testing.T) {
	// Two coordinates within the same 2-decimal bucket must share one key.
	a := Coordinate{Lat: 59.9386, Lon: 30.3141}
	b := Coordinate{Lat: 59.9414, Lon: 30.3099}

	if a.Bucket() != b.Bucket() {
		t.Fatalf("expected shared bucket, got %q and %q", a.Bucket(), b.Bucket())
	}

	far := Coordinate{Lat: 59.95, Lon: 30.31}
	if a.Bucket() == far.Bucket() {
		t.Fatalf("expected distinct buckets, both %q", a.Bucket())
	}
}

func TestDistanceKM(t *testing.T) {
	// St. Petersburg to Moscow is roughly 635 km.
	spb := Coordinate{Lat: 59.9386, Lon: 30.3141}
	msk := Coordinate{Lat: 55.7558, Lon: 37.6173}

	d := spb.DistanceKM(msk)
	if d < 600 || d > 680 {
		t.Fatalf("unexpected distance %v km", d)
	}

	if self := spb.DistanceKM(spb); self > 0.001 {
		t.Fatalf("distance to self should be ~0, got %v", self)
	}
}

func TestReadingAge(t *testing.T) {
	now := time.Now().UTC()
	r := NormalizedReading{ObservedAt: now.Add(-10 * time.Minute)}
	if age := r.Age(now); age != 10*time.Minute {
		t.Fatalf("expected age 10m, got %v", age)
	}
}
