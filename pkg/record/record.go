// Package record defines the fixed-layout record types produced by the
// simulation and their binary wire format.
//
// Both record kinds serialize as flat little-endian blocks with no padding
// and no file-level framing: a stream file is simply N consecutive blocks.
// The layout is documented for downstream readers by the companion header
// artifact written at end of run.
package record

import (
	"encoding/binary"
	"math"
)

// Channel identifies one independent record stream.
type Channel string

const (
	// ChannelCherenkov carries photon production records.
	ChannelCherenkov Channel = "cherenkov"
	// ChannelDose carries energy deposit records.
	ChannelDose Channel = "dose"
)

// Block sizes in bytes. These are wire-format constants; changing them
// breaks every existing stream file.
const (
	PhotonRecordSize  = 60
	DepositRecordSize = 36
)

// Field counts per block, as documented in the header artifacts.
const (
	PhotonFieldCount  = 15
	DepositFieldCount = 9
)

// TrackIDUnknown marks a photon whose owning sub-track could not be
// resolved.
const TrackIDUnknown int32 = -1

// PhotonRecord is one Cherenkov photon: where it was produced, where it
// terminated, and its terminal energy. Positions are in cm, directions are
// unit vectors, energy is in micro-eV.
type PhotonRecord struct {
	InitX, InitY, InitZ             float32
	InitDirX, InitDirY, InitDirZ    float32
	FinalX, FinalY, FinalZ          float32
	FinalDirX, FinalDirY, FinalDirZ float32
	FinalEnergy                     float32
	EventID                         uint32
	TrackID                         int32
}

// DepositRecord is one energy deposit: absolute position, position relative
// to the event's primary vertex, deposited energy in MeV, and the particle
// code of the depositing track.
type DepositRecord struct {
	X, Y, Z    float32
	DX, DY, DZ float32
	Energy     float32
	EventID    uint32
	PDG        int32
}

// Binary is implemented by record types that serialize to a fixed-size
// little-endian block.
type Binary interface {
	// AppendBinary appends the record's wire encoding to dst and returns
	// the extended slice.
	AppendBinary(dst []byte) []byte

	// BinarySize returns the encoded block size in bytes.
	BinarySize() int
}

// Compile-time wire format checks.
var (
	_ Binary = PhotonRecord{}
	_ Binary = DepositRecord{}
)

// AppendBinary appends the 60-byte encoding of r to dst.
func (r PhotonRecord) AppendBinary(dst []byte) []byte {
	dst = appendFloat32(dst, r.InitX)
	dst = appendFloat32(dst, r.InitY)
	dst = appendFloat32(dst, r.InitZ)
	dst = appendFloat32(dst, r.InitDirX)
	dst = appendFloat32(dst, r.InitDirY)
	dst = appendFloat32(dst, r.InitDirZ)
	dst = appendFloat32(dst, r.FinalX)
	dst = appendFloat32(dst, r.FinalY)
	dst = appendFloat32(dst, r.FinalZ)
	dst = appendFloat32(dst, r.FinalDirX)
	dst = appendFloat32(dst, r.FinalDirY)
	dst = appendFloat32(dst, r.FinalDirZ)
	dst = appendFloat32(dst, r.FinalEnergy)
	dst = binary.LittleEndian.AppendUint32(dst, r.EventID)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(r.TrackID))
	return dst
}

// BinarySize returns PhotonRecordSize.
func (r PhotonRecord) BinarySize() int { return PhotonRecordSize }

// DecodePhotonRecord decodes one photon block from b.
// b must hold at least PhotonRecordSize bytes.
func DecodePhotonRecord(b []byte) PhotonRecord {
	_ = b[PhotonRecordSize-1]
	return PhotonRecord{
		InitX:       float32At(b, 0),
		InitY:       float32At(b, 4),
		InitZ:       float32At(b, 8),
		InitDirX:    float32At(b, 12),
		InitDirY:    float32At(b, 16),
		InitDirZ:    float32At(b, 20),
		FinalX:      float32At(b, 24),
		FinalY:      float32At(b, 28),
		FinalZ:      float32At(b, 32),
		FinalDirX:   float32At(b, 36),
		FinalDirY:   float32At(b, 40),
		FinalDirZ:   float32At(b, 44),
		FinalEnergy: float32At(b, 48),
		EventID:     binary.LittleEndian.Uint32(b[52:]),
		TrackID:     int32(binary.LittleEndian.Uint32(b[56:])),
	}
}

// AppendBinary appends the 36-byte encoding of r to dst.
func (r DepositRecord) AppendBinary(dst []byte) []byte {
	dst = appendFloat32(dst, r.X)
	dst = appendFloat32(dst, r.Y)
	dst = appendFloat32(dst, r.Z)
	dst = appendFloat32(dst, r.DX)
	dst = appendFloat32(dst, r.DY)
	dst = appendFloat32(dst, r.DZ)
	dst = appendFloat32(dst, r.Energy)
	dst = binary.LittleEndian.AppendUint32(dst, r.EventID)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(r.PDG))
	return dst
}

// BinarySize returns DepositRecordSize.
func (r DepositRecord) BinarySize() int { return DepositRecordSize }

// DecodeDepositRecord decodes one deposit block from b.
// b must hold at least DepositRecordSize bytes.
func DecodeDepositRecord(b []byte) DepositRecord {
	_ = b[DepositRecordSize-1]
	return DepositRecord{
		X:       float32At(b, 0),
		Y:       float32At(b, 4),
		Z:       float32At(b, 8),
		DX:      float32At(b, 12),
		DY:      float32At(b, 16),
		DZ:      float32At(b, 20),
		Energy:  float32At(b, 24),
		EventID: binary.LittleEndian.Uint32(b[28:]),
		PDG:     int32(binary.LittleEndian.Uint32(b[32:])),
	}
}

func appendFloat32(dst []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
}

func float32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

// FileFormat represents an analysis export file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// FileStats contains statistics about an encoded export file.
type FileStats struct {
	RecordCount int
	SizeBytes   int64
}
