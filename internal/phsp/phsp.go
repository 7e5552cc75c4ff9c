// Package phsp reads phase-space source files: the ASCII row format and
// the IAEA limited binary format. A source is loaded once and shared
// read-only across all worker threads; each thread walks it with its own
// cursor.
package phsp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/cherenkovlab/phspstore/internal/errors"
)

// malformedLineWarnLimit caps parse warnings so a corrupt file does not
// flood the log.
const malformedLineWarnLimit = 5

// iaeaRecordSize is the IAEA limited format block: 1 type byte plus six
// float32 values (E, X, Y, Z, U, V).
const iaeaRecordSize = 25

// Particle is one source particle. Positions are in cm, energy in MeV.
type Particle struct {
	PosX, PosY, PosZ float64
	DirX, DirY, DirZ float64
	Energy           float64
	Type             int32
	Weight           float64
}

// Source is an immutable, fully loaded phase-space file.
type Source struct {
	particles []Particle
	cycle     bool
}

// Load reads the phase-space file at path. A companion ".header" file next
// to it marks the IAEA binary format; otherwise the file is parsed as
// ASCII rows "x y z dx dy dz energy type [weight]".
func Load(path string, cycle bool, logger *slog.Logger) (*Source, error) {
	var (
		particles []Particle
		err       error
	)
	if hasIAEAHeader(path) {
		logger.Info("loading IAEA binary phase-space file", "path", path)
		particles, err = readIAEA(path)
	} else {
		logger.Info("loading ASCII phase-space file", "path", path)
		particles, err = readASCII(path, logger)
	}
	if err != nil {
		return nil, err
	}

	src := &Source{particles: particles, cycle: cycle}
	src.logStatistics(logger)
	return src, nil
}

// hasIAEAHeader reports whether a companion header file exists for path,
// with the extension replaced by ".header".
func hasIAEAHeader(path string) bool {
	headerPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".header"
	_, err := os.Stat(headerPath)
	return err == nil
}

func readASCII(path string, logger *slog.Logger) ([]Particle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &apperrors.StorageError{Operation: "open", Path: path, Err: err}
	}
	defer f.Close()

	var (
		particles []Particle
		lineNo    int
		malformed int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p, err := parseRow(line)
		if err != nil {
			malformed++
			if malformed <= malformedLineWarnLimit {
				logger.Warn("skipping malformed phase-space row",
					"path", path, "line", lineNo, "error", err)
			}
			continue
		}
		particles = append(particles, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, &apperrors.StorageError{Operation: "read", Path: path, Err: err}
	}
	if malformed > malformedLineWarnLimit {
		logger.Warn("further malformed rows suppressed",
			"path", path, "malformed", malformed)
	}
	return particles, nil
}

// parseRow parses one ASCII row: 8 required fields plus an optional weight.
func parseRow(line string) (Particle, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return Particle{}, fmt.Errorf("want at least 8 fields, got %d", len(fields))
	}

	var vals [7]float64
	for i := 0; i < 7; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return Particle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	ptype, err := strconv.ParseInt(fields[7], 10, 32)
	if err != nil {
		return Particle{}, fmt.Errorf("particle type: %w", err)
	}

	weight := 1.0
	if len(fields) >= 9 {
		if v, err := strconv.ParseFloat(fields[8], 64); err == nil {
			weight = v
		}
	}

	return Particle{
		PosX: vals[0], PosY: vals[1], PosZ: vals[2],
		DirX: vals[3], DirY: vals[4], DirZ: vals[5],
		Energy: vals[6],
		Type:   int32(ptype),
		Weight: weight,
	}, nil
}

// readIAEA reads the 25-byte IAEA limited format. The sign of the type
// byte carries the sign of the Z direction cosine, which is reconstructed
// from U and V.
func readIAEA(path string) ([]Particle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &apperrors.StorageError{Operation: "open", Path: path, Err: err}
	}
	defer f.Close()

	var particles []Particle
	r := bufio.NewReader(f)
	block := make([]byte, iaeaRecordSize)
	for {
		_, err := io.ReadFull(r, block)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return nil, &apperrors.StorageError{Operation: "read", Path: path, Err: apperrors.ErrTruncatedStream}
		}
		if err != nil {
			return nil, &apperrors.StorageError{Operation: "read", Path: path, Err: err}
		}

		typeByte := int8(block[0])
		u := float64(math.Float32frombits(binary.LittleEndian.Uint32(block[17:])))
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(block[21:])))
		w := 0.0
		if cos2 := 1.0 - u*u - v*v; cos2 > 0 {
			w = math.Sqrt(cos2)
		}
		if typeByte < 0 {
			w = -w
		}

		code := typeByte
		if code < 0 {
			code = -code
		}

		particles = append(particles, Particle{
			Energy: float64(math.Float32frombits(binary.LittleEndian.Uint32(block[1:]))),
			PosX:   float64(math.Float32frombits(binary.LittleEndian.Uint32(block[5:]))),
			PosY:   float64(math.Float32frombits(binary.LittleEndian.Uint32(block[9:]))),
			PosZ:   float64(math.Float32frombits(binary.LittleEndian.Uint32(block[13:]))),
			DirX:   u,
			DirY:   v,
			DirZ:   w,
			Type:   iaeaTypeToPDG(code),
			Weight: 1.0,
		})
	}
	return particles, nil
}

func iaeaTypeToPDG(code int8) int32 {
	switch code {
	case 1:
		return 22 // photon
	case 2:
		return 11 // electron
	case 3:
		return -11 // positron
	default:
		return 22
	}
}

// Len returns the number of loaded source particles.
func (s *Source) Len() int { return len(s.particles) }

// At returns the particle at index i.
func (s *Source) At(i int) Particle { return s.particles[i] }

// Cursor returns a new iteration cursor starting at start. Each thread
// owns its own cursor; the underlying data is never mutated.
func (s *Source) Cursor(start int) *Cursor {
	if s.Len() > 0 {
		start = start % s.Len()
	}
	return &Cursor{src: s, index: start}
}

// Cursor walks a Source sequentially, optionally cycling back to the
// start when the source is exhausted.
type Cursor struct {
	src   *Source
	index int
}

// Next returns the next particle. ok is false once the source is exhausted
// and cycling is disabled.
func (c *Cursor) Next() (Particle, bool) {
	if c.src.Len() == 0 || c.index >= c.src.Len() {
		return Particle{}, false
	}

	p := c.src.particles[c.index]
	c.index++
	if c.index >= c.src.Len() && c.src.cycle {
		c.index = 0
	}
	return p, true
}

// logStatistics mirrors the load-time report operators rely on to sanity
// check a source file.
func (s *Source) logStatistics(logger *slog.Logger) {
	if s.Len() == 0 {
		logger.Warn("phase-space source is empty")
		return
	}

	typeCounts := make(map[int32]int)
	minEnergy := math.Inf(1)
	maxEnergy := math.Inf(-1)
	for _, p := range s.particles {
		typeCounts[p.Type]++
		minEnergy = math.Min(minEnergy, p.Energy)
		maxEnergy = math.Max(maxEnergy, p.Energy)
	}

	logger.Info("phase-space source loaded",
		"particles", s.Len(),
		"types", len(typeCounts),
		"min_energy_mev", minEnergy,
		"max_energy_mev", maxEnergy,
	)
}
