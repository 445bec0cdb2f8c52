package callsim

// sim.go holds the call-blocking simulator.  A simulation replays the
// busy hour of one snapshot as a stream of call arrival and departure
// events per link, scheduled on an event manager in virtual time.  Call
// arrivals follow a Poisson process; admission is decided by an Erlang-B
// blocking probability at the link's current occupancy, under a hard cap
// at the link's circuit capacity

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"github.com/rs/zerolog"
	"math"
	"sync"
	"time"
)

// SimStatus enumerates the lifecycle states of one snapshot's simulation
type SimStatus int

const (
	SimIdle SimStatus = iota
	SimRunning
	SimCompleted
	SimStopped
)

var statusToStr map[SimStatus]string = map[SimStatus]string{
	SimIdle: "idle", SimRunning: "running", SimCompleted: "completed", SimStopped: "stopped"}

func (s SimStatus) String() string {
	return statusToStr[s]
}

// EventKind tags the entries of the simulation event stream
type EventKind string

const (
	CallStarted         EventKind = "call-started"
	CallBlocked         EventKind = "call-blocked"
	CallEnded           EventKind = "call-ended"
	SimulationCompleted EventKind = "simulation-completed"
)

// A CallEvent describes one occurrence on the event stream.  TimeSecs is
// virtual simulation time
type CallEvent struct {
	SnapshotID  string    `json:"snapshotid"`
	Kind        EventKind `json:"kind"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	TimeSecs    float64   `json:"timesecs"`
	ActiveCalls int       `json:"activecalls"`
}

// Metrics is the pollable aggregate view of a simulation
type Metrics struct {
	ActiveCalls            int     `json:"activecalls"`
	TotalCalls             int     `json:"totalcalls"`
	BlockedCalls           int     `json:"blockedcalls"`
	BandwidthUsageMbps     float64 `json:"bandwidthusagembps"`
	PeakActiveCalls        int     `json:"peakactivecalls"`
	PeakBandwidthUsageMbps float64 `json:"peakbandwidthusagembps"`
	ElapsedMs              float64 `json:"elapsedms"`
	Status                 string  `json:"status"`
}

// An Observer receives the event stream and throttled metrics samples.
// The engine tolerates having no observers at all; metrics then simply
// go unread
type Observer interface {
	OnCallEvent(evt CallEvent)
	OnMetrics(snapshotID string, m Metrics)
}

// A LinkSimConfig holds the per-link parameters derived once when a
// simulation starts, from the link's metrics and the global parameters
type LinkSimConfig struct {
	From                 string  `json:"from"`
	To                   string  `json:"to"`
	CallRatePerMin       float64 `json:"callratepermin"`
	BandwidthPerCallMbps float64 `json:"bandwidthpercallmbps"`
	MaxConcurrentCalls   int     `json:"maxconcurrentcalls"`
	CallDurationSecs     float64 `json:"calldurationsecs"`
	OfferedErlangs       float64 `json:"offerederlangs"`
}

// deriveLinkSimConfig computes a link's simulation parameters.  The call
// rate recovers the arrival rate implied by the offered load and mean
// holding time, thinned by the engineered blocking probability.  The
// concurrency bound is the smaller of the rounded-down offered load and
// the capacity the analysis assigned the link, and never below one
func deriveLinkSimConfig(lm LinkMetrics, blockingProb, callDurationSecs float64) LinkSimConfig {
	capacity := lm.RequiredCircuits
	if lm.Codec != "" {
		capacity = int(math.Ceil(lm.BusyHourErlangs))
	}
	maxCalls := int(math.Floor(lm.BusyHourErlangs))
	if capacity < maxCalls {
		maxCalls = capacity
	}
	if maxCalls < 1 {
		maxCalls = 1
	}

	holdingMins := callDurationSecs / 60.0
	rate := lm.BusyHourErlangs / holdingMins * (1.0 - blockingProb)

	return LinkSimConfig{
		From:                 lm.From,
		To:                   lm.To,
		CallRatePerMin:       rate,
		BandwidthPerCallMbps: lm.BandwidthPerCallMbps(),
		MaxConcurrentCalls:   maxCalls,
		CallDurationSecs:     callDurationSecs,
		OfferedErlangs:       lm.BusyHourErlangs,
	}
}

// linkSimState is the mutable per-link record of a running simulation
type linkSimState struct {
	cfg        LinkSimConfig
	active     int
	accepted   int
	blocked    int
	peakActive int
	rngstrm    *rngstream.RngStream
}

// simState is the per-snapshot simulation record.  Its fields are
// mutated only by event handlers running on the snapshot's own event
// manager; the mutex covers concurrent reads from pollers
type simState struct {
	mu         sync.Mutex
	snapshotID string
	status     SimStatus
	stopped    bool
	links      []*linkSimState

	activeCalls   int
	totalCalls    int
	blockedCalls  int
	bandwidthMbps float64
	peakActive    int
	peakBandwidth float64
	elapsedSecs   float64

	durationSecs float64
	sampleSecs   float64
	live         bool
	startWall    time.Time

	evtMgr *evtm.EventManager
	done   chan struct{}
}

// metricsLocked builds the aggregate view.  Caller holds st.mu
func (st *simState) metricsLocked() Metrics {
	return Metrics{
		ActiveCalls:            st.activeCalls,
		TotalCalls:             st.totalCalls,
		BlockedCalls:           st.blockedCalls,
		BandwidthUsageMbps:     st.bandwidthMbps,
		PeakActiveCalls:        st.peakActive,
		PeakBandwidthUsageMbps: st.peakBandwidth,
		ElapsedMs:              st.elapsedSecs * 1000.0,
		Status:                 st.status.String(),
	}
}

// linkRef is the context handed to event handlers, binding a link's
// state to its snapshot's simulation and owning manager
type linkRef struct {
	mgr *SimulationManager
	st  *simState
	ls  *linkSimState
}

// A SimulationManager owns the mapping from snapshot id to simulation
// state.  It is instance-scoped: two managers never share state, so
// independent instances (in tests, say) cannot interfere
type SimulationManager struct {
	mu        sync.Mutex
	store     *SnapshotStore
	desc      SimDesc
	sims      map[string]*simState
	observers []Observer
	collector *SimCollector
	traceMgr  *CallTraceManager
	logger    zerolog.Logger
}

// CreateSimulationManager is a constructor.  The store supplies the link
// metrics of snapshots by id; the desc supplies the global simulation
// parameters
func CreateSimulationManager(store *SnapshotStore, desc *SimDesc, logger zerolog.Logger) *SimulationManager {
	mgr := new(SimulationManager)
	mgr.store = store
	mgr.desc = *desc
	mgr.sims = make(map[string]*simState)
	mgr.observers = make([]Observer, 0)
	mgr.logger = logger
	return mgr
}

// RegisterObserver subscribes an observer to the event stream and
// metrics samples of every simulation this manager runs
func (mgr *SimulationManager) RegisterObserver(obs Observer) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.observers = append(mgr.observers, obs)
}

// SetCollector attaches a prometheus collector bundle updated as
// simulations progress
func (mgr *SimulationManager) SetCollector(sc *SimCollector) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.collector = sc
}

// SetTraceManager attaches a trace manager that records every call
// event for post-run analysis
func (mgr *SimulationManager) SetTraceManager(tm *CallTraceManager) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.traceMgr = tm
}

// Start launches the simulation of a snapshot.  Starting a snapshot
// whose simulation is already running is a no-op; starting one snapshot
// places no requirement on any other.  A missing snapshot aborts the
// start with nothing created
func (mgr *SimulationManager) Start(snapshotID string) error {
	snap, present := mgr.store.Get(snapshotID)
	if !present {
		mgr.logger.Error().Str("snapshot", snapshotID).Msg("simulation start aborted, no such snapshot")
		return fmt.Errorf("no snapshot with id %s", snapshotID)
	}
	if len(snap.Links) == 0 {
		mgr.logger.Error().Str("snapshot", snapshotID).Msg("simulation start aborted, snapshot has no links")
		return fmt.Errorf("snapshot %s has no links to simulate", snapshotID)
	}

	mgr.mu.Lock()
	if st, running := mgr.sims[snapshotID]; running {
		st.mu.Lock()
		active := st.status == SimRunning
		st.mu.Unlock()
		if active {
			mgr.mu.Unlock()
			return nil
		}
	}

	st := &simState{
		snapshotID:   snapshotID,
		status:       SimRunning,
		durationSecs: mgr.desc.DurationSecs,
		sampleSecs:   mgr.desc.SampleSecs,
		live:         mgr.desc.Live,
		startWall:    time.Now(),
		evtMgr:       evtm.New(),
		done:         make(chan struct{}),
	}
	for _, lm := range snap.Links {
		ls := new(linkSimState)
		ls.cfg = deriveLinkSimConfig(lm, snap.BlockingProbability, mgr.desc.CallDurationSecs)
		ls.rngstrm = rngstream.New(snapshotID + "-" + lm.From + "-" + lm.To)
		st.links = append(st.links, ls)
	}
	mgr.sims[snapshotID] = st
	mgr.mu.Unlock()

	// seed the first arrival of every link, then let the event manager
	// carry the run to the window deadline
	for _, ls := range st.links {
		ok, dt := nextInterarrival(ls)
		if !ok || dt >= st.durationSecs {
			continue
		}
		st.evtMgr.Schedule(&linkRef{mgr: mgr, st: st, ls: ls}, nil, callArrival, vrtime.SecondsToTime(dt))
	}
	st.evtMgr.Schedule(&linkRef{mgr: mgr, st: st}, nil, sampleMetrics, vrtime.SecondsToTime(st.sampleSecs))

	mgr.logger.Info().Str("snapshot", snapshotID).Int("links", len(st.links)).
		Float64("durationsecs", st.durationSecs).Msg("simulation started")

	go func() {
		st.evtMgr.Run(st.durationSecs)
		mgr.finish(st)
	}()
	return nil
}

// Stop halts a running simulation, freezing its metrics at their exact
// current values.  Every pending event for the snapshot becomes inert.
// The return reports whether a running simulation was found
func (mgr *SimulationManager) Stop(snapshotID string) bool {
	mgr.mu.Lock()
	st, present := mgr.sims[snapshotID]
	mgr.mu.Unlock()
	if !present {
		return false
	}

	st.mu.Lock()
	if st.status != SimRunning {
		st.mu.Unlock()
		return false
	}
	st.stopped = true
	st.status = SimStopped
	m := st.metricsLocked()
	st.mu.Unlock()

	mgr.logger.Info().Str("snapshot", snapshotID).Msg("simulation stopped")
	mgr.pushMetrics(snapshotID, m)
	return true
}

// Reset returns a completed or stopped simulation to idle, discarding
// its state.  A running simulation is left alone
func (mgr *SimulationManager) Reset(snapshotID string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	st, present := mgr.sims[snapshotID]
	if !present {
		return
	}
	st.mu.Lock()
	running := st.status == SimRunning
	st.mu.Unlock()
	if !running {
		delete(mgr.sims, snapshotID)
	}
}

// Status reports the lifecycle state of a snapshot's simulation
func (mgr *SimulationManager) Status(snapshotID string) SimStatus {
	mgr.mu.Lock()
	st, present := mgr.sims[snapshotID]
	mgr.mu.Unlock()
	if !present {
		return SimIdle
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status
}

// GetMetrics returns the current aggregate metrics of a snapshot's
// simulation.  Pollable at any time while state exists
func (mgr *SimulationManager) GetMetrics(snapshotID string) (Metrics, error) {
	mgr.mu.Lock()
	st, present := mgr.sims[snapshotID]
	mgr.mu.Unlock()
	if !present {
		return Metrics{}, fmt.Errorf("no simulation state for snapshot %s", snapshotID)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.metricsLocked(), nil
}

// LinkConfigs returns the per-link parameter records of a snapshot's
// simulation, for display alongside the live metrics
func (mgr *SimulationManager) LinkConfigs(snapshotID string) ([]LinkSimConfig, error) {
	mgr.mu.Lock()
	st, present := mgr.sims[snapshotID]
	mgr.mu.Unlock()
	if !present {
		return nil, fmt.Errorf("no simulation state for snapshot %s", snapshotID)
	}
	cfgs := make([]LinkSimConfig, 0, len(st.links))
	for _, ls := range st.links {
		cfgs = append(cfgs, ls.cfg)
	}
	return cfgs, nil
}

// Wait blocks until a snapshot's simulation has drained its event loop,
// whether it ran to completion or was stopped
func (mgr *SimulationManager) Wait(snapshotID string) {
	mgr.mu.Lock()
	st, present := mgr.sims[snapshotID]
	mgr.mu.Unlock()
	if !present {
		return
	}
	<-st.done
}

// finish runs after the event manager drains.  A run that was not
// stopped is marked completed, with exact final metrics pushed and the
// completion event emitted
func (mgr *SimulationManager) finish(st *simState) {
	st.mu.Lock()
	completed := !st.stopped
	if completed {
		st.status = SimCompleted
		st.elapsedSecs = st.durationSecs
	}
	m := st.metricsLocked()
	st.mu.Unlock()

	if completed {
		mgr.pushMetrics(st.snapshotID, m)
		mgr.emitEvent(vrtime.SecondsToTime(st.durationSecs), CallEvent{
			SnapshotID:  st.snapshotID,
			Kind:        SimulationCompleted,
			TimeSecs:    st.durationSecs,
			ActiveCalls: m.ActiveCalls,
		})
		mgr.logger.Info().Str("snapshot", st.snapshotID).
			Int("totalcalls", m.TotalCalls).Int("blockedcalls", m.BlockedCalls).
			Msg("simulation completed")
	}
	close(st.done)
}

// emitEvent fans one call event out to the observers, the collector,
// and the trace manager, whichever of them are attached
func (mgr *SimulationManager) emitEvent(vrt vrtime.Time, evt CallEvent) {
	mgr.mu.Lock()
	observers := make([]Observer, len(mgr.observers))
	copy(observers, mgr.observers)
	collector := mgr.collector
	traceMgr := mgr.traceMgr
	mgr.mu.Unlock()

	for _, obs := range observers {
		obs.OnCallEvent(evt)
	}
	if collector != nil {
		collector.recordEvent(evt)
	}
	if traceMgr != nil {
		AddCallTrace(traceMgr, vrt, evt)
	}
}

// pushMetrics fans a metrics sample out to the observers and collector
func (mgr *SimulationManager) pushMetrics(snapshotID string, m Metrics) {
	mgr.mu.Lock()
	observers := make([]Observer, len(mgr.observers))
	copy(observers, mgr.observers)
	collector := mgr.collector
	mgr.mu.Unlock()

	for _, obs := range observers {
		obs.OnMetrics(snapshotID, m)
	}
	if collector != nil {
		collector.recordMetrics(snapshotID, m)
	}
}

// nextInterarrival samples the time to a link's next call arrival from
// the exponential distribution of its Poisson arrival process.  The
// false return marks a link with no arrival rate at all
func nextInterarrival(ls *linkSimState) (bool, float64) {
	ratePerSec := ls.cfg.CallRatePerMin / 60.0
	if ratePerSec <= 0.0 {
		return false, 0.0
	}
	u01 := ls.rngstrm.RandU01()
	return true, expRV(u01, ratePerSec)
}

// expRV returns a sample of an exponentially distributed random number
func expRV(u01, rate float64) float64 {
	return -math.Log(1.0-u01) / rate
}

// callArrival is the event handler for one scheduled call arrival on a
// link.  It schedules the link's next arrival (deadline permitting),
// then decides admission: a full link always blocks, an unsaturated link
// blocks with the Erlang-B probability at its current occupancy
func callArrival(evtMgr *evtm.EventManager, context any, data any) any {
	ref := context.(*linkRef)
	st := ref.st
	ls := ref.ls

	st.mu.Lock()
	now := evtMgr.CurrentSeconds()
	if st.stopped || now > st.durationSecs {
		st.mu.Unlock()
		return nil
	}
	st.elapsedSecs = now

	// keep the arrival stream alive up to the window deadline.  The
	// deadline check, not a realized count, bounds generation
	ok, dt := nextInterarrival(ls)
	if ok && now+dt < st.durationSecs {
		evtMgr.Schedule(ref, nil, callArrival, vrtime.SecondsToTime(dt))
	}

	blocked := ls.active >= ls.cfg.MaxConcurrentCalls
	if !blocked {
		pBlock := erlangBClosed(float64(ls.active), ls.cfg.MaxConcurrentCalls)
		blocked = ls.rngstrm.RandU01() < pBlock
	}

	var evt CallEvent
	if blocked {
		ls.blocked++
		st.blockedCalls++
		evt = CallEvent{SnapshotID: st.snapshotID, Kind: CallBlocked,
			From: ls.cfg.From, To: ls.cfg.To, TimeSecs: now, ActiveCalls: ls.active}
	} else {
		ls.active++
		ls.accepted++
		if ls.active > ls.peakActive {
			ls.peakActive = ls.active
		}
		st.activeCalls++
		st.totalCalls++
		st.bandwidthMbps += ls.cfg.BandwidthPerCallMbps
		if st.activeCalls > st.peakActive {
			st.peakActive = st.activeCalls
		}
		if st.bandwidthMbps > st.peakBandwidth {
			st.peakBandwidth = st.bandwidthMbps
		}
		// the departure of this specific call always fires after it
		evtMgr.Schedule(ref, nil, callDeparture, vrtime.SecondsToTime(ls.cfg.CallDurationSecs))
		evt = CallEvent{SnapshotID: st.snapshotID, Kind: CallStarted,
			From: ls.cfg.From, To: ls.cfg.To, TimeSecs: now, ActiveCalls: ls.active}
	}
	st.mu.Unlock()

	ref.mgr.emitEvent(evtMgr.CurrentTime(), evt)
	return nil
}

// callDeparture releases the capacity held by one accepted call.
// Departures never block
func callDeparture(evtMgr *evtm.EventManager, context any, data any) any {
	ref := context.(*linkRef)
	st := ref.st
	ls := ref.ls

	st.mu.Lock()
	now := evtMgr.CurrentSeconds()
	if st.stopped || now > st.durationSecs {
		st.mu.Unlock()
		return nil
	}
	st.elapsedSecs = now
	ls.active--
	st.activeCalls--
	st.bandwidthMbps -= ls.cfg.BandwidthPerCallMbps
	evt := CallEvent{SnapshotID: st.snapshotID, Kind: CallEnded,
		From: ls.cfg.From, To: ls.cfg.To, TimeSecs: now, ActiveCalls: ls.active}
	st.mu.Unlock()

	ref.mgr.emitEvent(evtMgr.CurrentTime(), evt)
	return nil
}

// sampleMetrics is the periodic metrics push.  In live mode it also
// paces virtual time against the wall clock, sleeping until the wall
// clock catches up with the sample's virtual timestamp
func sampleMetrics(evtMgr *evtm.EventManager, context any, data any) any {
	ref := context.(*linkRef)
	st := ref.st

	st.mu.Lock()
	now := evtMgr.CurrentSeconds()
	if st.stopped || now > st.durationSecs {
		st.mu.Unlock()
		return nil
	}
	st.elapsedSecs = now
	live := st.live
	target := st.startWall.Add(time.Duration(now * float64(time.Second)))
	m := st.metricsLocked()
	if now+st.sampleSecs <= st.durationSecs {
		evtMgr.Schedule(ref, nil, sampleMetrics, vrtime.SecondsToTime(st.sampleSecs))
	}
	st.mu.Unlock()

	if live {
		if wait := time.Until(target); wait > 0 {
			time.Sleep(wait)
		}
	}
	ref.mgr.pushMetrics(st.snapshotID, m)
	return nil
}
