package callsim

import (
	"path/filepath"
	"testing"
)

func TestLocationListFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "locations.yaml")

	ll := DefaultLocationList()
	if err := ll.WriteToFile(file); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	got, err := ReadLocationList(file, true, nil)
	if err != nil {
		t.Fatalf("ReadLocationList failed: %v", err)
	}
	if got.ListName != ll.ListName || len(got.Locations) != len(ll.Locations) {
		t.Fatalf("round trip changed shape: %+v", got)
	}
	for idx, loc := range ll.Locations {
		if got.Locations[idx] != loc {
			t.Errorf("location %d changed: %+v vs %+v", idx, got.Locations[idx], loc)
		}
	}
}

func TestLocationListValidate(t *testing.T) {
	ll := CreateLocationList("bad")
	ll.AddLocation("US", 100.0)
	if err := ll.Validate(); err == nil {
		t.Errorf("single-location list passed validation")
	}

	ll.AddLocation("UK", -5.0)
	if err := ll.Validate(); err == nil {
		t.Errorf("negative daily minutes passed validation")
	}

	ll.AddLocation("UK", 5.0)
	if err := ll.Validate(); err != nil {
		t.Errorf("valid list rejected: %v", err)
	}
}

func TestAddLocationReplaces(t *testing.T) {
	ll := CreateLocationList("replace")
	ll.AddLocation("US", 100.0)
	ll.AddLocation("US", 200.0)
	if len(ll.Locations) != 1 {
		t.Fatalf("duplicate AddLocation grew the list to %d", len(ll.Locations))
	}
	if ll.Locations[0].DailyMins != 200.0 {
		t.Errorf("AddLocation did not replace: %g", ll.Locations[0].DailyMins)
	}
}

func TestSimDescValidate(t *testing.T) {
	sd := CreateSimDesc("ok")
	if err := sd.Validate(); err != nil {
		t.Fatalf("default sim desc rejected: %v", err)
	}

	sd.DurationSecs = 0.0
	if err := sd.Validate(); err == nil {
		t.Errorf("zero duration passed validation")
	}
	sd.DurationSecs = 15.0

	sd.MaxSnapshots = 0
	if err := sd.Validate(); err == nil {
		t.Errorf("zero snapshot limit passed validation")
	}
}

func TestBuildExperimentDefaults(t *testing.T) {
	exp, err := BuildExperiment(map[string]string{}, true)
	if err != nil {
		t.Fatalf("BuildExperiment with defaults failed: %v", err)
	}
	if len(exp.Locations.Locations) != 3 {
		t.Errorf("default experiment has %d locations, want 3", len(exp.Locations.Locations))
	}
	if exp.SimParams.MaxSnapshots != 2 {
		t.Errorf("default snapshot limit %d, want 2", exp.SimParams.MaxSnapshots)
	}
}

func TestBuildExperimentFromFiles(t *testing.T) {
	dir := t.TempDir()
	locFile := filepath.Join(dir, "locs.yaml")
	simFile := filepath.Join(dir, "sim.yaml")

	ll := CreateLocationList("pair")
	ll.AddLocation("A", 500.0)
	ll.AddLocation("B", 500.0)
	if err := ll.WriteToFile(locFile); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	sd := CreateSimDesc("short")
	sd.DurationSecs = 5.0
	if err := sd.WriteToFile(simFile); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	syn := map[string]string{"locations": locFile, "sim": simFile}
	exp, err := BuildExperiment(syn, true)
	if err != nil {
		t.Fatalf("BuildExperiment failed: %v", err)
	}
	if len(exp.Locations.Locations) != 2 || exp.SimParams.DurationSecs != 5.0 {
		t.Errorf("experiment did not reflect files: %+v %+v", exp.Locations, exp.SimParams)
	}
}
