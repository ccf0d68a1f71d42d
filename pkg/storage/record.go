package storage

import (
	"encoding/binary"
	"math"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Record layout in the image. There is no version field and no checksum.
const (
	SignatureOffset   = 0
	SensitivityOffset = 1
	RecordSize        = 5
)

// Record is a saved calibration.
type Record struct {
	Signature   byte
	Sensitivity float32
}

// Store reads and writes the calibration record.
type Store struct {
	img       Image
	signature byte
}

// New creates a Store over img that recognises records by signature.
func New(img Image, signature byte) *Store {
	return &Store{img: img, signature: signature}
}

// Load returns the saved record and true when the signature byte matches.
// Anything else, including a read failure, means no calibration is saved.
func (s *Store) Load() (Record, bool) {
	var buf [RecordSize]byte
	if _, err := s.img.ReadAt(buf[:], SignatureOffset); err != nil {
		logrus.WithError(err).Warn("failed to read calibration record")
		return Record{}, false
	}

	if buf[SignatureOffset] != s.signature {
		return Record{}, false
	}

	return Record{
		Signature:   buf[SignatureOffset],
		Sensitivity: decodeFloat(buf[SensitivityOffset:RecordSize]),
	}, true
}

// Save writes the signature and then the sensitivity.
// The two writes are not atomic: losing power between them leaves a valid
// signature in front of whatever sensitivity was there before.
func (s *Store) Save(sensitivity float32) error {
	if _, err := s.img.WriteAt([]byte{s.signature}, SignatureOffset); err != nil {
		return pkgerrors.Wrap(err, "failed to write calibration signature")
	}

	var buf [4]byte
	encodeFloat(buf[:], sensitivity)
	if _, err := s.img.WriteAt(buf[:], SensitivityOffset); err != nil {
		return pkgerrors.Wrap(err, "failed to write calibration sensitivity")
	}

	return nil
}

// Signature returns the sentinel this store recognises.
func (s *Store) Signature() byte {
	return s.signature
}

// Floats are stored the way the AVR toolchain lays them out: IEEE-754, little endian.
func encodeFloat(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func decodeFloat(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}
