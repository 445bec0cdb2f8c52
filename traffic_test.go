package callsim

import (
	"github.com/iti/rngstream"
	"math"
	"testing"
)

func testLocations() *LocationList {
	ll := CreateLocationList("test")
	ll.AddLocation("US", 2400.0)
	ll.AddLocation("China", 1800.0)
	ll.AddLocation("UK", 1200.0)
	return ll
}

func TestEqualSplitPreservesOriginTotals(t *testing.T) {
	ll := testLocations()
	tm := BuildTrafficMatrix(ll, EqualSplit, nil)

	for _, loc := range ll.Locations {
		var sum float64
		for _, mins := range tm.Minutes[loc.Name] {
			sum += mins
		}
		if sum != loc.DailyMins {
			t.Errorf("origin %s splits to %g minutes, configured %g", loc.Name, sum, loc.DailyMins)
		}
	}

	// equal split of two destinations is an even halving
	if got := tm.Minutes["US"]["China"]; got != 1200.0 {
		t.Errorf("US->China = %g, want 1200", got)
	}
}

func TestRandomizedSplitApproximatelyPreservesTotals(t *testing.T) {
	ll := testLocations()
	rng := rngstream.New("randomized-split-test")
	tm := BuildTrafficMatrix(ll, RandomizedSplit, rng)

	for _, loc := range ll.Locations {
		var sum float64
		for _, mins := range tm.Minutes[loc.Name] {
			sum += mins
		}
		// weights are normalized, so the sum is exact up to float error
		if math.Abs(sum-loc.DailyMins) > 1e-9 {
			t.Errorf("origin %s splits to %g minutes, configured %g", loc.Name, sum, loc.DailyMins)
		}
		for dest, mins := range tm.Minutes[loc.Name] {
			if mins <= 0.0 {
				t.Errorf("%s->%s drew non-positive minutes %g", loc.Name, dest, mins)
			}
		}
	}
}

func TestZeroTrafficPairsSkipped(t *testing.T) {
	ll := CreateLocationList("sparse")
	ll.AddLocation("US", 1000.0)
	ll.AddLocation("UK", 0.0)

	params := AnalysisParams{NetworkType: PSTN, BlockingProbability: 0.01}
	links, err := BuildLinkMetrics(ll, params, nil)
	if err != nil {
		t.Fatalf("BuildLinkMetrics failed: %v", err)
	}

	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	for _, lm := range links {
		if lm.DailyMinutes == 0.0 {
			t.Errorf("link %s->%s emitted with zero daily minutes", lm.From, lm.To)
		}
	}
}

func TestBusyHourErlangs(t *testing.T) {
	ll := CreateLocationList("pair")
	ll.AddLocation("US", 1000.0)
	ll.AddLocation("UK", 0.0)

	params := AnalysisParams{NetworkType: PSTN, BlockingProbability: 0.01}
	links, err := BuildLinkMetrics(ll, params, nil)
	if err != nil {
		t.Fatalf("BuildLinkMetrics failed: %v", err)
	}
	want := 1000.0 * 0.17 / 60.0
	if math.Abs(links[0].BusyHourErlangs-want) > 1e-12 {
		t.Errorf("busy hour erlangs = %g, want %g", links[0].BusyHourErlangs, want)
	}
}

func TestPstnLinkMetrics(t *testing.T) {
	ll := testLocations()
	params := AnalysisParams{NetworkType: PSTN, BlockingProbability: 0.01}
	links, err := BuildLinkMetrics(ll, params, nil)
	if err != nil {
		t.Fatalf("BuildLinkMetrics failed: %v", err)
	}
	if len(links) != 6 {
		t.Fatalf("expected 6 directed links, got %d", len(links))
	}

	for _, lm := range links {
		wantT1 := int(math.Ceil(float64(lm.RequiredCircuits) / 24.0))
		if lm.T1Count != wantT1 {
			t.Errorf("%s->%s t1count = %d, want %d", lm.From, lm.To, lm.T1Count, wantT1)
		}
		if lm.BandwidthMbps != float64(lm.T1Count)*1.544 {
			t.Errorf("%s->%s bandwidth = %g, want %g", lm.From, lm.To, lm.BandwidthMbps, float64(lm.T1Count)*1.544)
		}
		if lm.RequiredCircuits <= 0 {
			t.Errorf("%s->%s required no circuits for positive load", lm.From, lm.To)
		}
	}
}

func TestVoipLinkMetrics(t *testing.T) {
	ll := testLocations()
	cases := []struct {
		codec       Codec
		payloadKbps float64
	}{
		{CodecG711, 64.0},
		{CodecG729a, 8.0},
	}
	for _, tc := range cases {
		params := AnalysisParams{NetworkType: VOIP, Codec: tc.codec, BlockingProbability: 0.01}
		links, err := BuildLinkMetrics(ll, params, nil)
		if err != nil {
			t.Fatalf("BuildLinkMetrics(%s) failed: %v", tc.codec, err)
		}
		for _, lm := range links {
			if lm.CodecBandwidthKbps != tc.payloadKbps {
				t.Errorf("%s payload = %g, want %g", tc.codec, lm.CodecBandwidthKbps, tc.payloadKbps)
			}
			if lm.BandwidthPerCallKbps != tc.payloadKbps+16.0 {
				t.Errorf("%s per-call bandwidth = %g, want %g", tc.codec, lm.BandwidthPerCallKbps, tc.payloadKbps+16.0)
			}
			want := lm.BusyHourErlangs * lm.BandwidthPerCallKbps / 1000.0
			if math.Abs(lm.TotalBandwidthMbps-want) > 1e-12 {
				t.Errorf("%s total bandwidth = %g, want %g", tc.codec, lm.TotalBandwidthMbps, want)
			}
		}
	}
}

func TestVoipRequiresCodec(t *testing.T) {
	ll := testLocations()
	params := AnalysisParams{NetworkType: VOIP, BlockingProbability: 0.01}
	if _, err := BuildLinkMetrics(ll, params, nil); err == nil {
		t.Errorf("expected error for voip analysis without codec")
	}
}

func TestValidateAnalysisParams(t *testing.T) {
	cases := []struct {
		name    string
		params  AnalysisParams
		wantErr bool
	}{
		{"valid pstn", AnalysisParams{NetworkType: PSTN, BlockingProbability: 0.01}, false},
		{"valid voip", AnalysisParams{NetworkType: VOIP, Codec: CodecG729a, BlockingProbability: 0.001}, false},
		{"blocking too low", AnalysisParams{NetworkType: PSTN, BlockingProbability: 0.0005}, true},
		{"blocking too high", AnalysisParams{NetworkType: PSTN, BlockingProbability: 0.2}, true},
		{"voip missing codec", AnalysisParams{NetworkType: VOIP, BlockingProbability: 0.01}, true},
		{"bad network type", AnalysisParams{NetworkType: "atm", BlockingProbability: 0.01}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAnalysisParams(tc.params)
			if tc.wantErr && err == nil {
				t.Errorf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
