// Package callsim implements a voice traffic engineering calculator and
// a discrete-event call-blocking simulator.  Aggregate daily call-minute
// totals between locations are turned into busy-hour offered loads, the
// loads into circuit or bandwidth requirements for a circuit-switched or
// packet-voice network model, and an analysis result can then be
// replayed as a stream of Poisson call arrivals to watch blocking
// behavior unfold on each link.
package callsim

// callsim.go has code that assembles an experiment from its
// description files

import (
	"fmt"
)

// An Experiment bundles the configuration an analysis and simulation
// run against
type Experiment struct {
	Locations *LocationList
	SimParams *SimDesc
}

// BuildExperiment is called from the module that creates and runs a
// calculator instance.  Its input binds pre-defined keys referring to
// input file types ("locations", "sim") to file names; missing keys
// fall back to the built-in defaults
func BuildExperiment(syn map[string]string, useYAML bool) (*Experiment, error) {
	exp := new(Experiment)

	locFile, present := syn["locations"]
	if present {
		ll, err := ReadLocationList(locFile, useYAML, nil)
		if err != nil {
			return nil, fmt.Errorf("reading location list: %w", err)
		}
		exp.Locations = ll
	} else {
		exp.Locations = DefaultLocationList()
	}

	simFile, present := syn["sim"]
	if present {
		sd, err := ReadSimDesc(simFile, useYAML, nil)
		if err != nil {
			return nil, fmt.Errorf("reading sim parameters: %w", err)
		}
		exp.SimParams = sd
	} else {
		exp.SimParams = CreateSimDesc("default")
	}

	if err := exp.Locations.Validate(); err != nil {
		return nil, err
	}
	if err := exp.SimParams.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// ValidateAnalysisParams is the input-boundary check applied before
// parameters reach the traffic model.  The model itself assumes its
// precondition holds and does not re-validate
func ValidateAnalysisParams(params AnalysisParams) error {
	switch params.NetworkType {
	case PSTN:
	case VOIP:
		if _, err := params.Codec.PayloadKbps(); err != nil {
			return fmt.Errorf("voip analysis requires a codec: %w", err)
		}
	default:
		return fmt.Errorf("unrecognized network type %q", string(params.NetworkType))
	}
	if params.BlockingProbability < 0.001 || params.BlockingProbability > 0.1 {
		return fmt.Errorf("blocking probability %g outside [0.001,0.1]", params.BlockingProbability)
	}
	return nil
}
