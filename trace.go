package callsim

// trace.go holds the trace manager, which gathers a record of every
// call event a simulation emits so the run can be analyzed after the
// fact.  Records are grouped by the snapshot whose simulation produced
// them

import (
	"encoding/json"
	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
	"os"
	"path"
	"strconv"
	"sync"
)

// A TraceInst is one serialized trace record, with the virtual time at
// which it was gathered
type TraceInst struct {
	TraceTime string `json:"tracetime" yaml:"tracetime"`
	TraceType string `json:"tracetype" yaml:"tracetype"`
	TraceStr  string `json:"tracestr" yaml:"tracestr"`
}

// CallTraceManager gathers information about simulation executions.
// By testing the InUse flag we can inhibit the activity of gathering a
// trace when we don't want it, while embedding calls to its methods
// everywhere we need them when it is
type CallTraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// all trace records for this experiment, keyed by snapshot id
	Traces map[string][]TraceInst `json:"traces" yaml:"traces"`

	mu sync.Mutex
}

// CreateCallTraceManager is a constructor.  It saves the name of the
// experiment and a flag indicating whether the trace manager is active
func CreateCallTraceManager(expName string, active bool) *CallTraceManager {
	tm := new(CallTraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.Traces = make(map[string][]TraceInst)
	return tm
}

// Active tells the caller whether the trace manager is actively being used
func (tm *CallTraceManager) Active() bool {
	return tm.InUse
}

// AddTrace creates a record of the trace using its calling arguments,
// and stores it under the snapshot it belongs to
func (tm *CallTraceManager) AddTrace(vrt vrtime.Time, snapshotID string, trace TraceInst) {
	if !tm.InUse {
		return
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	_, present := tm.Traces[snapshotID]
	if !present {
		tm.Traces[snapshotID] = make([]TraceInst, 0)
	}
	tm.Traces[snapshotID] = append(tm.Traces[snapshotID], trace)
}

// TraceCount reports the number of records gathered for a snapshot
func (tm *CallTraceManager) TraceCount(snapshotID string) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.Traces[snapshotID])
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *CallTraceManager) WriteToFile(filename string) bool {
	if !tm.InUse {
		return false
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()

	out := struct {
		InUse   bool                   `json:"inuse" yaml:"inuse"`
		ExpName string                 `json:"expname" yaml:"expname"`
		Traces  map[string][]TraceInst `json:"traces" yaml:"traces"`
	}{tm.InUse, tm.ExpName, tm.Traces}

	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(out)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(out, "", "\t")
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
	return true
}

// A CallTrace saves information about one call event, for post-run
// analysis
type CallTrace struct {
	Time        float64 `json:"time" yaml:"time"`
	Ticks       int64   `json:"ticks" yaml:"ticks"`
	Priority    int64   `json:"priority" yaml:"priority"`
	SnapshotID  string  `json:"snapshotid" yaml:"snapshotid"`
	From        string  `json:"from" yaml:"from"`
	To          string  `json:"to" yaml:"to"`
	Op          string  `json:"op" yaml:"op"`
	ActiveCalls int     `json:"activecalls" yaml:"activecalls"`
}

func (ct *CallTrace) Serialize() string {
	var bytes []byte
	var merr error

	bytes, merr = yaml.Marshal(*ct)

	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddCallTrace creates a record of a call event and stores it
func AddCallTrace(tm *CallTraceManager, vrt vrtime.Time, evt CallEvent) {
	ct := new(CallTrace)
	ct.Time = vrt.Seconds()
	ct.Ticks = vrt.Ticks()
	ct.Priority = vrt.Pri()
	ct.SnapshotID = evt.SnapshotID
	ct.From = evt.From
	ct.To = evt.To
	ct.Op = string(evt.Kind)
	ct.ActiveCalls = evt.ActiveCalls

	ctStr := ct.Serialize()
	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)

	trcInst := TraceInst{TraceTime: traceTime, TraceType: "call", TraceStr: ctStr}
	tm.AddTrace(vrt, evt.SnapshotID, trcInst)
}
