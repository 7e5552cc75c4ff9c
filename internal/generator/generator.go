// Package generator produces synthetic simulation events so the recorder
// pipeline can run without the external physics engine. Output is
// deterministic per (seed, thread) pair.
package generator

import (
	"math"
	"math/rand/v2"

	"github.com/cherenkovlab/phspstore/internal/config/dto"
	"github.com/cherenkovlab/phspstore/internal/phsp"
	"github.com/cherenkovlab/phspstore/internal/recorder"
)

// Water-phantom kinematics in internal units (mm, MeV).
const (
	cherenkovCosTheta = 0.75  // cone opening for n=1.33 at beta~1
	meanPathMM        = 100.0 // optical photon path before absorption
	meanDepositMeV    = 0.5
	trackLengthMM     = 150.0 // deposits spread along the primary track
	phantomDepthMM    = 300.0
)

// Deposit is one synthetic energy deposit in internal units.
type Deposit struct {
	Pos    recorder.Vec3
	Energy float64 // MeV
	PDG    int32
}

// Event is one synthetic simulation event.
type Event struct {
	Vertex   recorder.Vec3
	Photons  []recorder.Photon
	Deposits []Deposit
}

// Generator generates synthetic events for one producer thread.
type Generator struct {
	rng              *rand.Rand
	photonsPerEvent  float64
	depositsPerEvent float64
}

// New creates a generator for the given thread. Threads sharing a seed
// produce distinct but reproducible streams.
func New(cfg dto.SourceConfig, threadID int) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}

	return &Generator{
		rng:              rand.New(rand.NewPCG(seed, uint64(threadID)+1)),
		photonsPerEvent:  cfg.PhotonsPerEvent,
		depositsPerEvent: cfg.DepositsPerEvent,
	}
}

// NextEvent generates one event. When primary is non-nil the event starts
// from the phase-space particle (positions in cm, converted to mm);
// otherwise a beam primary entering the phantom along +z is synthesized.
func (g *Generator) NextEvent(primary *phsp.Particle) Event {
	var vertex, beamDir recorder.Vec3

	if primary != nil {
		vertex = recorder.Vec3{
			X: primary.PosX * 10,
			Y: primary.PosY * 10,
			Z: primary.PosZ * 10,
		}
		beamDir = normalize(recorder.Vec3{X: primary.DirX, Y: primary.DirY, Z: primary.DirZ})
	} else {
		vertex = recorder.Vec3{
			X: g.rng.NormFloat64() * 2,
			Y: g.rng.NormFloat64() * 2,
			Z: g.rng.Float64() * phantomDepthMM,
		}
		beamDir = recorder.Vec3{Z: 1}
	}

	event := Event{Vertex: vertex}

	nPhotons := g.poisson(g.photonsPerEvent)
	event.Photons = make([]recorder.Photon, 0, nPhotons)
	for i := 0; i < nPhotons; i++ {
		event.Photons = append(event.Photons, g.photon(int32(i+1), vertex, beamDir))
	}

	nDeposits := g.poisson(g.depositsPerEvent)
	event.Deposits = make([]Deposit, 0, nDeposits)
	for i := 0; i < nDeposits; i++ {
		event.Deposits = append(event.Deposits, g.deposit(vertex, beamDir))
	}

	return event
}

// photon emits one Cherenkov photon on the cone around the primary
// direction, transported over an exponential path length.
func (g *Generator) photon(trackID int32, vertex, beamDir recorder.Vec3) recorder.Photon {
	initPos := recorder.Vec3{
		X: vertex.X + g.rng.NormFloat64(),
		Y: vertex.Y + g.rng.NormFloat64(),
		Z: vertex.Z + g.rng.NormFloat64(),
	}
	initDir := g.coneDirection(beamDir, cherenkovCosTheta)

	pathLength := g.rng.ExpFloat64() * meanPathMM
	finalPos := recorder.Vec3{
		X: initPos.X + initDir.X*pathLength,
		Y: initPos.Y + initDir.Y*pathLength,
		Z: initPos.Z + initDir.Z*pathLength,
	}

	// Small-angle scattering between production and absorption.
	finalDir := normalize(recorder.Vec3{
		X: initDir.X + g.rng.NormFloat64()*0.05,
		Y: initDir.Y + g.rng.NormFloat64()*0.05,
		Z: initDir.Z + g.rng.NormFloat64()*0.05,
	})

	// Optical photon: 1.7 to 3.1 eV, in MeV.
	energy := (1.7 + g.rng.Float64()*1.4) * 1e-6

	return recorder.Photon{
		InitPos:     initPos,
		InitDir:     initDir,
		FinalPos:    finalPos,
		FinalDir:    finalDir,
		FinalEnergy: energy,
		TrackID:     trackID,
	}
}

// deposit places one energy deposit along the primary track with a small
// transverse spread.
func (g *Generator) deposit(vertex, beamDir recorder.Vec3) Deposit {
	along := g.rng.Float64() * trackLengthMM

	return Deposit{
		Pos: recorder.Vec3{
			X: vertex.X + beamDir.X*along + g.rng.NormFloat64()*3,
			Y: vertex.Y + beamDir.Y*along + g.rng.NormFloat64()*3,
			Z: vertex.Z + beamDir.Z*along + g.rng.NormFloat64()*3,
		},
		Energy: g.rng.ExpFloat64() * meanDepositMeV,
		PDG:    g.depositPDG(),
	}
}

// depositPDG picks the depositing particle species: mostly electrons, some
// photons, few positrons.
func (g *Generator) depositPDG() int32 {
	switch v := g.rng.Float64(); {
	case v < 0.70:
		return 11
	case v < 0.90:
		return 22
	default:
		return -11
	}
}

// coneDirection samples a unit vector at fixed polar angle around axis with
// uniform azimuth.
func (g *Generator) coneDirection(axis recorder.Vec3, cosTheta float64) recorder.Vec3 {
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	phi := g.rng.Float64() * 2 * math.Pi

	u, v := orthonormalBasis(axis)
	return recorder.Vec3{
		X: axis.X*cosTheta + sinTheta*(u.X*math.Cos(phi)+v.X*math.Sin(phi)),
		Y: axis.Y*cosTheta + sinTheta*(u.Y*math.Cos(phi)+v.Y*math.Sin(phi)),
		Z: axis.Z*cosTheta + sinTheta*(u.Z*math.Cos(phi)+v.Z*math.Sin(phi)),
	}
}

// orthonormalBasis returns two unit vectors perpendicular to w and to each
// other. w must be non-zero.
func orthonormalBasis(w recorder.Vec3) (recorder.Vec3, recorder.Vec3) {
	var u recorder.Vec3
	if math.Abs(w.X) < math.Abs(w.Y) && math.Abs(w.X) < math.Abs(w.Z) {
		u = recorder.Vec3{Y: -w.Z, Z: w.Y}
	} else if math.Abs(w.Y) < math.Abs(w.Z) {
		u = recorder.Vec3{X: w.Z, Z: -w.X}
	} else {
		u = recorder.Vec3{X: -w.Y, Y: w.X}
	}
	u = normalize(u)

	v := recorder.Vec3{
		X: w.Y*u.Z - w.Z*u.Y,
		Y: w.Z*u.X - w.X*u.Z,
		Z: w.X*u.Y - w.Y*u.X,
	}
	return u, normalize(v)
}

func normalize(v recorder.Vec3) recorder.Vec3 {
	norm := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	if norm == 0 {
		return recorder.Vec3{Z: 1}
	}
	return recorder.Vec3{X: v.X / norm, Y: v.Y / norm, Z: v.Z / norm}
}

// poisson samples a Poisson count; large means use the normal
// approximation to keep the hot path cheap.
func (g *Generator) poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 30 {
		n := int(math.Round(mean + g.rng.NormFloat64()*math.Sqrt(mean)))
		if n < 0 {
			return 0
		}
		return n
	}

	limit := math.Exp(-mean)
	n := 0
	p := 1.0
	for {
		p *= g.rng.Float64()
		if p <= limit {
			return n
		}
		n++
	}
}
