package recorder

import (
	"os"

	apperrors "github.com/cherenkovlab/phspstore/internal/errors"
)

// Companion header artifacts document the stream layout for downstream
// readers. Regenerated on every run so they always describe the files next
// to them.

const photonHeaderText = `Binary Phase Space File
========================

Format: Binary (little-endian)
Total fields per photon: 15
Bytes per photon: 60

Field order:
  1. InitialX [cm] (f4)
  2. InitialY [cm] (f4)
  3. InitialZ [cm] (f4)
  4. InitialDirX (f4)
  5. InitialDirY (f4)
  6. InitialDirZ (f4)
  7. FinalX [cm] (f4)
  8. FinalY [cm] (f4)
  9. FinalZ [cm] (f4)
 10. FinalDirX (f4)
 11. FinalDirY (f4)
 12. FinalDirZ (f4)
 13. FinalEnergy [microeV] (f4)
 14. EventID (u4)
 15. TrackID (i4, -1 = unknown)

Python reading example:
  import numpy as np
  dtype = np.dtype([
      ('ix', '<f4'), ('iy', '<f4'), ('iz', '<f4'),
      ('idx', '<f4'), ('idy', '<f4'), ('idz', '<f4'),
      ('fx', '<f4'), ('fy', '<f4'), ('fz', '<f4'),
      ('fdx', '<f4'), ('fdy', '<f4'), ('fdz', '<f4'),
      ('energy', '<f4'), ('event_id', '<u4'), ('track_id', '<i4'),
  ])
  data = np.fromfile('file.phsp', dtype=dtype)
  # Access: data['ix'], data['energy'], data['event_id']
`

const depositHeaderText = `Binary Dose Deposit File
========================

Format: Binary (little-endian)
Total fields per deposit: 9
Bytes per deposit: 36

Field order:
  1. X [cm] (f4)
  2. Y [cm] (f4)
  3. Z [cm] (f4)
  4. RelX [cm] (f4)  relative to the event's primary vertex
  5. RelY [cm] (f4)
  6. RelZ [cm] (f4)
  7. Energy [MeV] (f4)
  8. EventID (u4)
  9. PDGCode (i4)

Python reading example:
  import numpy as np
  dtype = np.dtype([
      ('x', '<f4'), ('y', '<f4'), ('z', '<f4'),
      ('dx', '<f4'), ('dy', '<f4'), ('dz', '<f4'),
      ('energy', '<f4'), ('event_id', '<u4'), ('pdg', '<i4'),
  ])
  data = np.fromfile('file.dose', dtype=dtype)
  # Access: data['energy'], data['pdg']
`

// WritePhotonHeader writes the photon stream's companion header artifact.
func WritePhotonHeader(path string) error {
	return writeHeader(path, photonHeaderText)
}

// WriteDepositHeader writes the deposit stream's companion header artifact.
func WriteDepositHeader(path string) error {
	return writeHeader(path, depositHeaderText)
}

func writeHeader(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return &apperrors.StorageError{Operation: "write", Path: path, Err: err}
	}
	return nil
}
