// Package recorder binds the simulation's producer threads to the record
// output path chosen for the run: shared master buffers flushed to binary
// stream files, or per-thread CSV files merged at run end.
package recorder

import (
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	bufferimpl "github.com/cherenkovlab/phspstore/internal/buffer"
	"github.com/cherenkovlab/phspstore/internal/config/dto"
	apperrors "github.com/cherenkovlab/phspstore/internal/errors"
	"github.com/cherenkovlab/phspstore/internal/summary"
	"github.com/cherenkovlab/phspstore/internal/textmerge"
	"github.com/cherenkovlab/phspstore/pkg/record"
)

// Internal units follow the simulation engine: lengths in mm, energies in
// MeV. Output units are cm and, for photon terminal energy, micro-eV.
const (
	cm = 10.0   // mm per cm
	eV = 1.0e-6 // MeV per eV
)

// Role distinguishes the one primary thread from the workers. The primary
// owns the master buffers and performs end-of-run finalization.
type Role int

const (
	RolePrimary Role = iota
	RoleWorker
)

func (r Role) String() string {
	if r == RolePrimary {
		return "primary"
	}
	return "worker"
}

// Vec3 is a position or direction in internal units.
type Vec3 struct {
	X, Y, Z float64
}

// Photon carries the values of one completed Cherenkov photon in internal
// units.
type Photon struct {
	InitPos  Vec3
	InitDir  Vec3
	FinalPos Vec3
	FinalDir Vec3
	// FinalEnergy is the terminal energy in MeV.
	FinalEnergy float64
	TrackID     int32
}

// RunCounters are the process-wide tallies for one run. All fields are
// updated with atomic increments from producer threads and read by the
// primary after every thread has finished.
type RunCounters struct {
	Photons                atomic.Int64
	Deposits               atomic.Int64
	DepositsWithoutPrimary atomic.Int64
	DroppedPhotons         atomic.Int64
	DroppedDeposits        atomic.Int64
}

// Reset zeroes all counters. Called once at run start, never mid-run.
func (c *RunCounters) Reset() {
	c.Photons.Store(0)
	c.Deposits.Store(0)
	c.DepositsWithoutPrimary.Store(0)
	c.DroppedPhotons.Store(0)
	c.DroppedDeposits.Store(0)
}

// MetricsCollector defines the metrics operations used by the recorder
// layer and the components it drives.
type MetricsCollector interface {
	IncRecordsEmitted(channel string)
	AddRecordsDropped(channel string, reason string, n float64)
	IncEventsProcessed()
	IncThreadFilesMerged(status string)

	IncAbsorptions(channel string)
	IncFlushes(channel string, status string)
	ObserveFlushDuration(channel string, seconds float64)
	ObserveFlushRecords(channel string, count float64)
}

// channel holds the run-scoped state of one record stream.
type channelState struct {
	enabled  bool
	basePath string
	capacity int
}

// Controller owns the shared state of one run: mode, per-channel master
// buffers, counters and timing. One Controller serves one run at a time.
type Controller struct {
	logger  *slog.Logger
	metrics MetricsCollector

	format    string
	threads   int // effective worker count
	cfgThread int // configured, 0 = auto
	phspPath  string

	cherenkov channelState
	dose      channelState

	photonMaster  *bufferimpl.Master[record.PhotonRecord]
	depositMaster *bufferimpl.Master[record.DepositRecord]

	counters RunCounters
	events   atomic.Int64

	active    bool
	startTime time.Time
	startCPU  float64
}

// NewController builds a controller from validated configuration.
func NewController(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics MetricsCollector) *Controller {
	threads := cfg.Run.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	return &Controller{
		logger:    logger,
		metrics:   metrics,
		format:    cfg.Output.Format,
		threads:   threads,
		cfgThread: cfg.Run.Threads,
		phspPath:  cfg.Source.PHSPFilePath,
		cherenkov: channelState{
			enabled:  cfg.Output.Cherenkov.Enabled,
			basePath: cfg.Output.CherenkovBasePath(),
			capacity: cfg.Output.CherenkovBufferSize(),
		},
		dose: channelState{
			enabled:  cfg.Output.Dose.Enabled,
			basePath: cfg.Output.DoseBasePath(),
			capacity: cfg.Output.DoseBufferSize(),
		},
	}
}

// Threads returns the effective worker thread count for the run.
func (c *Controller) Threads() int { return c.threads }

// Counters returns the run counters. Values are stable only after Finalize.
func (c *Controller) Counters() *RunCounters { return &c.counters }

// PhotonStreamPath returns the binary photon stream path.
func (c *Controller) PhotonStreamPath() string { return c.cherenkov.basePath + ".phsp" }

// DepositStreamPath returns the binary deposit stream path.
func (c *Controller) DepositStreamPath() string { return c.dose.basePath + ".dose" }

// photonCSVPath is the merged photon CSV; it keeps the bare base path so
// existing analysis tooling finds it unchanged.
func (c *Controller) photonCSVPath() string { return c.cherenkov.basePath }

func (c *Controller) depositCSVPath() string { return c.dose.basePath + ".dose.csv" }

// Start begins a run: resets counters, truncates pre-existing stream files
// and binds the master buffers. Must be called from the primary before any
// BeginRun.
func (c *Controller) Start() error {
	if c.active {
		return apperrors.ErrRunActive
	}

	c.counters.Reset()
	c.events.Store(0)

	if c.format == dto.FormatBinary {
		if c.cherenkov.enabled {
			if err := truncate(c.PhotonStreamPath()); err != nil {
				return err
			}
			c.photonMaster = bufferimpl.NewMaster[record.PhotonRecord](bufferimpl.MasterConfig{
				Channel:  record.ChannelCherenkov,
				Capacity: c.cherenkov.capacity,
				Path:     c.PhotonStreamPath(),
				OnDrop:   c.dropPhotons,
			}, c.logger, c.bufferMetrics())
		}
		if c.dose.enabled {
			if err := truncate(c.DepositStreamPath()); err != nil {
				return err
			}
			c.depositMaster = bufferimpl.NewMaster[record.DepositRecord](bufferimpl.MasterConfig{
				Channel:  record.ChannelDose,
				Capacity: c.dose.capacity,
				Path:     c.DepositStreamPath(),
				OnDrop:   c.dropDeposits,
			}, c.logger, c.bufferMetrics())
		}
	}

	c.startTime = time.Now()
	c.startCPU = summary.ProcessCPUSeconds()
	c.active = true

	c.logger.Info("run started",
		"format", c.format,
		"threads", c.threads,
		"cherenkov", c.cherenkov.enabled,
		"dose", c.dose.enabled,
	)
	return nil
}

// bufferMetrics passes the collector through to the buffer layer without
// handing a typed nil to it.
func (c *Controller) bufferMetrics() bufferimpl.MetricsCollector {
	if c.metrics == nil {
		return nil
	}
	return c.metrics
}

func (c *Controller) dropPhotons(n int) {
	c.counters.DroppedPhotons.Add(int64(n))
	if c.metrics != nil {
		c.metrics.AddRecordsDropped(string(record.ChannelCherenkov), "flush_failure", float64(n))
	}
}

func (c *Controller) dropDeposits(n int) {
	c.counters.DroppedDeposits.Add(int64(n))
	if c.metrics != nil {
		c.metrics.AddRecordsDropped(string(record.ChannelDose), "flush_failure", float64(n))
	}
}

// BeginRun binds one producer thread to the run and returns its recorder.
// Thread 0 is the primary. In binary mode workers get thread-local buffers
// and the primary writes through the masters; in CSV mode every thread,
// the primary included, opens its own file.
func (c *Controller) BeginRun(threadID int) (*ThreadRecorder, error) {
	if !c.active {
		return nil, apperrors.ErrRunNotActive
	}

	role := RoleWorker
	if threadID == 0 {
		role = RolePrimary
	}

	r := &ThreadRecorder{
		ctrl:     c,
		threadID: threadID,
		role:     role,
		tracks:   make(map[int32]photonTrack),
	}

	switch c.format {
	case dto.FormatBinary:
		if role == RoleWorker {
			if c.cherenkov.enabled {
				r.photonBuf = bufferimpl.NewWorker[record.PhotonRecord](c.cherenkov.capacity, c.threads)
			}
			if c.dose.enabled {
				r.depositBuf = bufferimpl.NewWorker[record.DepositRecord](c.dose.capacity, c.threads)
			}
		}
	case dto.FormatCSV:
		// A thread whose file cannot be opened still participates in the
		// run; its emits become no-ops, matching the binary path's
		// tolerance for lost batches.
		if c.cherenkov.enabled {
			w, err := textmerge.NewThreadWriter(c.photonCSVPath(), threadID, textmerge.PhotonHeader)
			if err != nil {
				c.logger.Error("cannot open thread output file", "thread_id", threadID, "error", err)
			} else {
				r.photonCSV = w
			}
		}
		if c.dose.enabled {
			w, err := textmerge.NewThreadWriter(c.depositCSVPath(), threadID, textmerge.DepositHeader)
			if err != nil {
				c.logger.Error("cannot open thread output file", "thread_id", threadID, "error", err)
			} else {
				r.depositCSV = w
			}
		}
	default:
		return nil, apperrors.ErrInvalidFormat
	}

	return r, nil
}

// Finalize completes the run on the primary thread after every thread has
// returned from EndRun: drains the masters, writes the companion header
// artifacts or merges the CSV files, logs run statistics and emits the run
// summary.
func (c *Controller) Finalize() error {
	if !c.active {
		return apperrors.ErrRunNotActive
	}

	switch c.format {
	case dto.FormatBinary:
		if c.photonMaster != nil {
			c.photonMaster.Flush()
			if err := WritePhotonHeader(c.cherenkov.basePath + ".header"); err != nil {
				c.logger.Warn("cannot write header artifact", "error", err)
			}
		}
		if c.depositMaster != nil {
			c.depositMaster.Flush()
			if err := WriteDepositHeader(c.dose.basePath + ".dose.header"); err != nil {
				c.logger.Warn("cannot write header artifact", "error", err)
			}
		}
	case dto.FormatCSV:
		merger := textmerge.NewMerger(c.logger, c.mergeMetrics())
		if c.cherenkov.enabled {
			if err := merger.Merge(c.photonCSVPath(), textmerge.PhotonHeader, c.threads); err != nil {
				c.logger.Error("photon merge failed", "error", err)
			}
		}
		if c.dose.enabled {
			if err := merger.Merge(c.depositCSVPath(), textmerge.DepositHeader, c.threads); err != nil {
				c.logger.Error("deposit merge failed", "error", err)
			}
		}
	}

	wall := time.Since(c.startTime).Seconds()
	cpu := summary.ProcessCPUSeconds() - c.startCPU
	c.active = false

	c.logStatistics(wall, cpu)
	c.writeSummary(wall, cpu)
	return nil
}

func (c *Controller) mergeMetrics() textmerge.MetricsCollector {
	if c.metrics == nil {
		return nil
	}
	return c.metrics
}

// logStatistics reports the run totals the way operators read them after
// every run.
func (c *Controller) logStatistics(wall, cpu float64) {
	events := c.events.Load()
	photons := c.counters.Photons.Load()

	attrs := []any{
		"events", events,
		"photons", photons,
		"deposits", c.counters.Deposits.Load(),
		"wall_seconds", wall,
		"cpu_seconds", cpu,
	}
	if wall > 0 {
		attrs = append(attrs,
			"events_per_second", float64(events)/wall,
			"speedup", cpu/wall,
		)
	}
	if events > 0 {
		attrs = append(attrs, "photons_per_event", float64(photons)/float64(events))
	}
	c.logger.Info("run statistics", attrs...)
}

// writeSummary emits the run metadata artifact. Failure never affects the
// run outcome.
func (c *Controller) writeSummary(wall, cpu float64) {
	s := summary.RunSummary{
		OutputBasePath:         c.cherenkov.basePath,
		OutputFormat:           c.format,
		PHSPFilePath:           c.phspPath,
		CherenkovEnabled:       c.cherenkov.enabled,
		DoseEnabled:            c.dose.enabled,
		NumThreadsConfig:       c.cfgThread,
		NumThreadsEffective:    c.threads,
		Events:                 c.events.Load(),
		TotalPhotons:           c.counters.Photons.Load(),
		TotalDeposits:          c.counters.Deposits.Load(),
		DepositsWithoutPrimary: c.counters.DepositsWithoutPrimary.Load(),
		DroppedPhotons:         c.counters.DroppedPhotons.Load(),
		DroppedDeposits:        c.counters.DroppedDeposits.Load(),
		WallTimeSeconds:        wall,
		CPUTimeSeconds:         cpu,
	}
	s.Stamp(time.Now())

	path := summary.MetaPath(c.cherenkov.basePath)
	if err := summary.Write(path, s); err != nil {
		c.logger.Warn("cannot write run summary", "path", path, "error", err)
		return
	}
	c.logger.Info("run summary written", "path", path)
}

func truncate(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &apperrors.StorageError{Operation: "truncate", Path: path, Err: err}
	}
	return f.Close()
}

// photonTrack accumulates one photon's creation and termination within the
// current event.
type photonTrack struct {
	initPos  Vec3
	initDir  Vec3
	finalPos Vec3
	finalDir Vec3
	energy   float64
	complete bool
}

// ThreadRecorder is the per-thread view of a run. It is owned by exactly
// one producer thread; only the absorb path touches shared state.
type ThreadRecorder struct {
	ctrl     *Controller
	threadID int
	role     Role

	photonBuf  *bufferimpl.RecordBuffer[record.PhotonRecord]
	depositBuf *bufferimpl.RecordBuffer[record.DepositRecord]

	photonCSV  *textmerge.ThreadWriter
	depositCSV *textmerge.ThreadWriter
	csvErrSeen bool

	// Event-scoped state.
	eventID   uint32
	vertex    Vec3 // primary vertex in cm
	hasVertex bool
	tracks    map[int32]photonTrack
	order     []int32
}

// ThreadID returns the recorder's thread index.
func (r *ThreadRecorder) ThreadID() int { return r.threadID }

// Role returns the recorder's role; thread 0 is the primary.
func (r *ThreadRecorder) Role() Role { return r.role }

// BeginEvent opens a new event. vertex is the event's primary vertex in
// internal units, nil when the event has none.
func (r *ThreadRecorder) BeginEvent(eventID uint32, vertex *Vec3) {
	r.eventID = eventID
	clear(r.tracks)
	r.order = r.order[:0]

	if vertex != nil {
		r.vertex = Vec3{X: vertex.X / cm, Y: vertex.Y / cm, Z: vertex.Z / cm}
		r.hasVertex = true
	} else {
		r.vertex = Vec3{}
		r.hasVertex = false
	}
}

// PhotonCreated registers a photon's production point and direction. The
// photon is emitted at EndEvent only if PhotonEnded is also seen for its
// track.
func (r *ThreadRecorder) PhotonCreated(trackID int32, pos, dir Vec3) {
	r.tracks[trackID] = photonTrack{initPos: pos, initDir: dir}
	r.order = append(r.order, trackID)
}

// PhotonEnded registers a photon's termination point, direction and energy
// (MeV). Unknown tracks are ignored.
func (r *ThreadRecorder) PhotonEnded(trackID int32, pos, dir Vec3, energy float64) {
	track, ok := r.tracks[trackID]
	if !ok {
		return
	}
	track.finalPos = pos
	track.finalDir = dir
	track.energy = energy
	track.complete = true
	r.tracks[trackID] = track
}

// EndEvent emits every completed photon of the event in creation order and
// advances the event tally.
func (r *ThreadRecorder) EndEvent() {
	for _, trackID := range r.order {
		track := r.tracks[trackID]
		if !track.complete {
			continue
		}
		r.EmitPhoton(r.eventID, trackID, Photon{
			InitPos:     track.initPos,
			InitDir:     track.initDir,
			FinalPos:    track.finalPos,
			FinalDir:    track.finalDir,
			FinalEnergy: track.energy,
			TrackID:     trackID,
		})
	}

	r.ctrl.events.Add(1)
	if r.ctrl.metrics != nil {
		r.ctrl.metrics.IncEventsProcessed()
	}
}

// EmitPhoton records one completed photon. Positions arrive in mm and are
// stored in cm; terminal energy arrives in MeV and is stored in micro-eV.
// Emitting on a disabled channel is a silent no-op.
func (r *ThreadRecorder) EmitPhoton(eventID uint32, trackID int32, p Photon) {
	c := r.ctrl
	if !c.cherenkov.enabled {
		if c.metrics != nil {
			c.metrics.AddRecordsDropped(string(record.ChannelCherenkov), "channel_disabled", 1)
		}
		return
	}

	rec := record.PhotonRecord{
		InitX:       float32(p.InitPos.X / cm),
		InitY:       float32(p.InitPos.Y / cm),
		InitZ:       float32(p.InitPos.Z / cm),
		InitDirX:    float32(p.InitDir.X),
		InitDirY:    float32(p.InitDir.Y),
		InitDirZ:    float32(p.InitDir.Z),
		FinalX:      float32(p.FinalPos.X / cm),
		FinalY:      float32(p.FinalPos.Y / cm),
		FinalZ:      float32(p.FinalPos.Z / cm),
		FinalDirX:   float32(p.FinalDir.X),
		FinalDirY:   float32(p.FinalDir.Y),
		FinalDirZ:   float32(p.FinalDir.Z),
		FinalEnergy: float32(p.FinalEnergy / eV * 1e6),
		EventID:     eventID,
		TrackID:     trackID,
	}

	c.counters.Photons.Add(1)
	if c.metrics != nil {
		c.metrics.IncRecordsEmitted(string(record.ChannelCherenkov))
	}

	switch c.format {
	case dto.FormatBinary:
		if r.role == RolePrimary {
			if c.photonMaster != nil {
				c.photonMaster.Append(rec)
			}
			return
		}
		if r.photonBuf == nil {
			return
		}
		r.photonBuf.Append(rec)
		if r.photonBuf.IsFull() && c.photonMaster != nil {
			c.photonMaster.Absorb(r.photonBuf)
		}
	case dto.FormatCSV:
		if r.photonCSV == nil {
			return
		}
		if err := r.photonCSV.Append(textmerge.FormatPhoton(rec)); err != nil {
			r.countCSVError(record.ChannelCherenkov, err)
		}
	}
}

// EmitDeposit records one energy deposit at (x, y, z) in mm with energy in
// MeV. The relative position is taken against the event's primary vertex;
// events without one produce a zero offset and are tallied.
func (r *ThreadRecorder) EmitDeposit(x, y, z, energy float64, pdg int32) {
	c := r.ctrl
	if !c.dose.enabled {
		if c.metrics != nil {
			c.metrics.AddRecordsDropped(string(record.ChannelDose), "channel_disabled", 1)
		}
		return
	}

	xcm, ycm, zcm := x/cm, y/cm, z/cm
	var dx, dy, dz float64
	if r.hasVertex {
		dx = xcm - r.vertex.X
		dy = ycm - r.vertex.Y
		dz = zcm - r.vertex.Z
	} else {
		c.counters.DepositsWithoutPrimary.Add(1)
	}

	rec := record.DepositRecord{
		X:       float32(xcm),
		Y:       float32(ycm),
		Z:       float32(zcm),
		DX:      float32(dx),
		DY:      float32(dy),
		DZ:      float32(dz),
		Energy:  float32(energy),
		EventID: r.eventID,
		PDG:     pdg,
	}

	c.counters.Deposits.Add(1)
	if c.metrics != nil {
		c.metrics.IncRecordsEmitted(string(record.ChannelDose))
	}

	switch c.format {
	case dto.FormatBinary:
		if r.role == RolePrimary {
			if c.depositMaster != nil {
				c.depositMaster.Append(rec)
			}
			return
		}
		if r.depositBuf == nil {
			return
		}
		r.depositBuf.Append(rec)
		if r.depositBuf.IsFull() && c.depositMaster != nil {
			c.depositMaster.Absorb(r.depositBuf)
		}
	case dto.FormatCSV:
		if r.depositCSV == nil {
			return
		}
		if err := r.depositCSV.Append(textmerge.FormatDeposit(rec)); err != nil {
			r.countCSVError(record.ChannelDose, err)
		}
	}
}

// countCSVError tallies a lost CSV line. Logged once per thread, not per
// record, to keep the hot path quiet at high event rates.
func (r *ThreadRecorder) countCSVError(ch record.Channel, err error) {
	switch ch {
	case record.ChannelCherenkov:
		r.ctrl.counters.DroppedPhotons.Add(1)
	case record.ChannelDose:
		r.ctrl.counters.DroppedDeposits.Add(1)
	}
	if r.ctrl.metrics != nil {
		r.ctrl.metrics.AddRecordsDropped(string(ch), "write_failure", 1)
	}
	if !r.csvErrSeen {
		r.csvErrSeen = true
		r.ctrl.logger.Error("csv write failed, further failures counted silently",
			"thread_id", r.threadID, "channel", ch, "error", err)
	}
}

// EndRun releases the thread's run resources: workers pay any remaining
// records into the masters, CSV threads close their files. The primary's
// master drain happens in Finalize, after every thread has returned.
func (r *ThreadRecorder) EndRun() {
	c := r.ctrl

	switch c.format {
	case dto.FormatBinary:
		if r.role == RoleWorker {
			if r.photonBuf != nil && c.photonMaster != nil {
				c.photonMaster.Absorb(r.photonBuf)
			}
			if r.depositBuf != nil && c.depositMaster != nil {
				c.depositMaster.Absorb(r.depositBuf)
			}
		}
	case dto.FormatCSV:
		if r.photonCSV != nil {
			if err := r.photonCSV.Close(); err != nil {
				c.logger.Error("cannot close thread output file",
					"thread_id", r.threadID, "error", err)
			}
		}
		if r.depositCSV != nil {
			if err := r.depositCSV.Close(); err != nil {
				c.logger.Error("cannot close thread output file",
					"thread_id", r.threadID, "error", err)
			}
		}
	}
}
