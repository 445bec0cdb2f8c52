package callsim

// desc.go holds the description structs that configure an experiment.
// They are built programmatically or deserialized from yaml/json files,
// in either case before any analysis or simulation is run

import (
	"encoding/json"
	"fmt"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
	"os"
	"path"
)

// A LocationDesc describes one traffic-originating location and the total
// number of call minutes it sends out per day, summed over all destinations
type LocationDesc struct {
	Name      string  `json:"name" yaml:"name"`
	DailyMins float64 `json:"dailymins" yaml:"dailymins"`
}

// A LocationList holds the locations participating in an experiment.
// The traffic matrix is built over every ordered pair of its members
type LocationList struct {
	// ListName is an identifier for this collection of locations
	ListName string `json:"listname" yaml:"listname"`

	Locations []LocationDesc `json:"locations" yaml:"locations"`
}

// CreateLocationList is an initialization constructor.
// Its output struct has methods for integrating data.
func CreateLocationList(listname string) *LocationList {
	ll := new(LocationList)
	ll.ListName = listname
	ll.Locations = make([]LocationDesc, 0)
	return ll
}

// AddLocation includes a location in the list, replacing any
// earlier entry with the same name
func (ll *LocationList) AddLocation(name string, dailyMins float64) {
	for idx := range ll.Locations {
		if ll.Locations[idx].Name == name {
			ll.Locations[idx].DailyMins = dailyMins
			return
		}
	}
	ll.Locations = append(ll.Locations, LocationDesc{Name: name, DailyMins: dailyMins})
}

// LocationNames returns the names of the listed locations, in list order
func (ll *LocationList) LocationNames() []string {
	names := make([]string, 0, len(ll.Locations))
	for _, loc := range ll.Locations {
		names = append(names, loc.Name)
	}
	return names
}

// Validate checks that the list can drive a traffic matrix build:
// at least two locations, unique names, non-negative daily totals
func (ll *LocationList) Validate() error {
	if len(ll.Locations) < 2 {
		return fmt.Errorf("location list %s needs at least two locations", ll.ListName)
	}
	seen := make([]string, 0, len(ll.Locations))
	for _, loc := range ll.Locations {
		if slices.Contains(seen, loc.Name) {
			return fmt.Errorf("location %s appears more than once in list %s", loc.Name, ll.ListName)
		}
		seen = append(seen, loc.Name)
		if loc.DailyMins < 0.0 {
			return fmt.Errorf("location %s has negative daily minutes", loc.Name)
		}
	}
	return nil
}

// WriteToFile stores the LocationList struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (ll *LocationList) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*ll)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*ll, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()

	return werr
}

// ReadLocationList deserializes a byte slice holding a representation of a
// LocationList struct.  If the input argument of dict (those bytes) is empty,
// the file whose name is given is read to acquire them.  A deserialized
// representation is returned, or an error if one is generated from a file
// read or the deserialization
func ReadLocationList(filename string, useYAML bool, dict []byte) (*LocationList, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := LocationList{}

	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}

// DefaultLocationList gives the three-site configuration the calculator
// ships with.  Daily totals are per-origin outbound call minutes
func DefaultLocationList() *LocationList {
	ll := CreateLocationList("default")
	ll.AddLocation("US", 2400.0)
	ll.AddLocation("China", 1800.0)
	ll.AddLocation("UK", 1200.0)
	return ll
}

// A SimDesc carries the global simulation parameters shared by every
// link in a simulation run
type SimDesc struct {
	// DescName is an identifier for this parameter set
	DescName string `json:"descname" yaml:"descname"`

	// length of the simulated window, in seconds
	DurationSecs float64 `json:"durationsecs" yaml:"durationsecs"`

	// cadence of metrics pushes to observers, in seconds
	SampleSecs float64 `json:"samplesecs" yaml:"samplesecs"`

	// mean call holding time, in seconds
	CallDurationSecs float64 `json:"calldurationsecs" yaml:"calldurationsecs"`

	// largest number of snapshots the store retains at once
	MaxSnapshots int `json:"maxsnapshots" yaml:"maxsnapshots"`

	// when true, virtual time is paced against the wall clock so that
	// observers see the run unfold live
	Live bool `json:"live" yaml:"live"`
}

// CreateSimDesc is a constructor filling in the stock parameter values
func CreateSimDesc(descname string) *SimDesc {
	sd := new(SimDesc)
	sd.DescName = descname
	sd.DurationSecs = 15.0
	sd.SampleSecs = 0.5
	sd.CallDurationSecs = 180.0
	sd.MaxSnapshots = 2
	sd.Live = false
	return sd
}

// Validate checks the parameter set for values that would stall or
// degenerate a simulation
func (sd *SimDesc) Validate() error {
	if sd.DurationSecs <= 0.0 {
		return fmt.Errorf("sim desc %s has non-positive duration", sd.DescName)
	}
	if sd.SampleSecs <= 0.0 {
		return fmt.Errorf("sim desc %s has non-positive sample cadence", sd.DescName)
	}
	if sd.CallDurationSecs <= 0.0 {
		return fmt.Errorf("sim desc %s has non-positive call duration", sd.DescName)
	}
	if sd.MaxSnapshots < 1 {
		return fmt.Errorf("sim desc %s allows no snapshots", sd.DescName)
	}
	return nil
}

// WriteToFile stores the SimDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (sd *SimDesc) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*sd)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*sd, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()

	return werr
}

// ReadSimDesc deserializes a byte slice holding a representation of a SimDesc
// struct.  If the input argument of dict (those bytes) is empty, the file
// whose name is given is read to acquire them
func ReadSimDesc(filename string, useYAML bool, dict []byte) (*SimDesc, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := SimDesc{}

	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}
