package callsim

// traffic.go builds the traffic matrix from per-location daily totals and
// derives per-link engineering metrics for the selected network model

import (
	"fmt"
	"github.com/iti/rngstream"
)

// BusyHourFraction is the share of a day's traffic carried during the
// busy hour.  Offered load in Erlangs is then busy-hour minutes over 60
const BusyHourFraction = 0.17

// NetworkType selects the dimensioning model applied to each link
type NetworkType string

const (
	PSTN NetworkType = "pstn"
	VOIP NetworkType = "voip"
)

// Codec identifies the voice compression scheme of a packet-voice call
type Codec string

const (
	CodecG711  Codec = "g711"
	CodecG729a Codec = "g729a"
)

// PayloadKbps gives the codec's payload bandwidth, before header overhead
func (c Codec) PayloadKbps() (float64, error) {
	switch c {
	case CodecG711:
		return 64.0, nil
	case CodecG729a:
		return 8.0, nil
	}
	return 0.0, fmt.Errorf("unrecognized codec %s", string(c))
}

// SplitMode chooses how an origin's daily total is divided among
// its destinations
type SplitMode int

const (
	// EqualSplit divides an origin's total evenly across destinations
	EqualSplit SplitMode = iota

	// RandomizedSplit draws a weight in [0.3,0.7] per destination and
	// normalizes.  The per-origin sum is preserved exactly, but the
	// division among destinations varies run to run
	RandomizedSplit
)

// A TrafficMatrix maps ordered (from,to) location pairs to daily call
// minutes.  The diagonal is absent, as are pairs with no traffic
type TrafficMatrix struct {
	Minutes map[string]map[string]float64
}

// flowsTo reports the daily minutes from one location to another,
// zero when no entry exists
func (tm *TrafficMatrix) flowsTo(from, to string) float64 {
	row, present := tm.Minutes[from]
	if !present {
		return 0.0
	}
	return row[to]
}

// BuildTrafficMatrix divides each origin's daily total among the other
// locations according to the split mode.  In randomized mode the rng
// stream argument supplies the weights; passing a named stream makes the
// division reproducible.  Zero-traffic entries are omitted entirely so
// that no downstream computation sees a zero-minute link
func BuildTrafficMatrix(ll *LocationList, mode SplitMode, rngstrm *rngstream.RngStream) *TrafficMatrix {
	tm := new(TrafficMatrix)
	tm.Minutes = make(map[string]map[string]float64)

	names := ll.LocationNames()
	for _, loc := range ll.Locations {
		if loc.DailyMins == 0.0 {
			continue
		}

		dests := make([]string, 0, len(names)-1)
		for _, name := range names {
			if name != loc.Name {
				dests = append(dests, name)
			}
		}
		if len(dests) == 0 {
			continue
		}

		row := make(map[string]float64)
		switch mode {
		case RandomizedSplit:
			// draw a weight per destination in [0.3,0.7], then scale
			// the weights so the row sums to the origin's total
			weights := make([]float64, len(dests))
			var weightSum float64
			for idx := range dests {
				weights[idx] = 0.3 + 0.4*rngstrm.RandU01()
				weightSum += weights[idx]
			}
			for idx, dest := range dests {
				row[dest] = loc.DailyMins * weights[idx] / weightSum
			}
		default:
			share := loc.DailyMins / float64(len(dests))
			for _, dest := range dests {
				row[dest] = share
			}
		}
		tm.Minutes[loc.Name] = row
	}
	return tm
}

// AnalysisParams carries the user-selected inputs of one analysis run.
// BlockingProbability is validated to [0.001,0.1] at the input boundary
// before these parameters reach the model; the model does not re-check
type AnalysisParams struct {
	NetworkType         NetworkType `json:"networktype" yaml:"networktype"`
	Codec               Codec       `json:"codec,omitempty" yaml:"codec,omitempty"`
	BlockingProbability float64     `json:"blockingprob" yaml:"blockingprob"`
	Split               SplitMode   `json:"split" yaml:"split"`
}

// A LinkMetrics record holds the engineering results for one directed
// location pair.  The PSTN and VoIP field groups are mutually exclusive,
// selected by the network type of the analysis that produced the record
type LinkMetrics struct {
	From            string  `json:"from" yaml:"from"`
	To              string  `json:"to" yaml:"to"`
	DailyMinutes    float64 `json:"dailymins" yaml:"dailymins"`
	BusyHourErlangs float64 `json:"busyhourerlangs" yaml:"busyhourerlangs"`

	// circuit-switched results
	RequiredCircuits int     `json:"requiredcircuits,omitempty" yaml:"requiredcircuits,omitempty"`
	Saturated        bool    `json:"saturated,omitempty" yaml:"saturated,omitempty"`
	T1Count          int     `json:"t1count,omitempty" yaml:"t1count,omitempty"`
	BandwidthMbps    float64 `json:"bandwidthmbps,omitempty" yaml:"bandwidthmbps,omitempty"`

	// packet-voice results
	Codec                 Codec   `json:"codec,omitempty" yaml:"codec,omitempty"`
	CodecBandwidthKbps    float64 `json:"codecbandwidthkbps,omitempty" yaml:"codecbandwidthkbps,omitempty"`
	HeaderOverheadKbps    float64 `json:"headeroverheadkbps,omitempty" yaml:"headeroverheadkbps,omitempty"`
	BandwidthPerCallKbps  float64 `json:"bandwidthpercallkbps,omitempty" yaml:"bandwidthpercallkbps,omitempty"`
	TotalBandwidthMbps    float64 `json:"totalbandwidthmbps,omitempty" yaml:"totalbandwidthmbps,omitempty"`
}

// BandwidthPerCallMbps gives the bandwidth one accepted call consumes,
// used by the simulator to track aggregate usage.  Circuit-switched calls
// occupy one DS0
func (lm *LinkMetrics) BandwidthPerCallMbps() float64 {
	if lm.Codec != "" {
		return lm.BandwidthPerCallKbps / 1000.0
	}
	return DS0Kbps / 1000.0
}

// BuildLinkMetrics constructs the traffic matrix for the locations and
// computes a LinkMetrics record for every ordered pair with nonzero
// traffic.  Pure function of its inputs; the rng stream is consulted
// only in randomized split mode
func BuildLinkMetrics(ll *LocationList, params AnalysisParams, rngstrm *rngstream.RngStream) ([]LinkMetrics, error) {
	if params.NetworkType == VOIP {
		if _, err := params.Codec.PayloadKbps(); err != nil {
			return nil, err
		}
	}

	tm := BuildTrafficMatrix(ll, params.Split, rngstrm)

	links := make([]LinkMetrics, 0)
	for _, from := range ll.LocationNames() {
		for _, to := range ll.LocationNames() {
			if from == to {
				continue
			}
			dailyMins := tm.flowsTo(from, to)
			if dailyMins == 0.0 {
				continue
			}

			lm := LinkMetrics{
				From:            from,
				To:              to,
				DailyMinutes:    dailyMins,
				BusyHourErlangs: dailyMins * BusyHourFraction / 60.0,
			}

			switch params.NetworkType {
			case PSTN:
				circuits, saturated := ErlangBBounded(lm.BusyHourErlangs, params.BlockingProbability)
				lm.RequiredCircuits = circuits
				lm.Saturated = saturated
				lm.T1Count = T1CountForCircuits(circuits)
				lm.BandwidthMbps = float64(lm.T1Count) * T1BandwidthMbps
			case VOIP:
				payload, _ := params.Codec.PayloadKbps()
				lm.Codec = params.Codec
				lm.CodecBandwidthKbps = payload
				lm.HeaderOverheadKbps = HeaderOverheadKbps
				lm.BandwidthPerCallKbps = VoipBandwidthPerCallKbps(payload, true)
				lm.TotalBandwidthMbps = lm.BusyHourErlangs * lm.BandwidthPerCallKbps / 1000.0
			default:
				return nil, fmt.Errorf("unrecognized network type %s", string(params.NetworkType))
			}
			links = append(links, lm)
		}
	}
	return links, nil
}
