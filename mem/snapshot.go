package mem

import (
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// zstdEnc and zstdDec are reused across snapshots; both are safe for
// concurrent use.
var (
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
)

func init() {
	var err error
	zstdEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("mem: zstd encoder initialization failed: " + err.Error())
	}
	zstdDec, err = zstd.NewReader(nil)
	if err != nil {
		panic("mem: zstd decoder initialization failed: " + err.Error())
	}
}

// Snapshot is one captured guest memory state: the compressed image, its
// BLAKE3 checksum, and the host mappings that were live at capture time.
type Snapshot struct {
	compressed []byte
	size       uint64
	sum        [32]byte
	regions    []Region
}

// Capture compresses and checksums the given memory image. The regions
// slice records the mappings live at capture time so a restore can roll
// the mapping set back with the bytes.
func Capture(image []byte, regions []Region) *Snapshot {
	s := &Snapshot{
		compressed: zstdEnc.EncodeAll(image, nil),
		size:       uint64(len(image)),
		sum:        blake3.Sum256(image),
	}
	s.regions = make([]Region, len(regions))
	copy(s.regions, regions)
	return s
}

// Image decompresses the captured memory and verifies it against the
// checksum taken at capture time.
func (s *Snapshot) Image() ([]byte, error) {
	image, err := zstdDec.DecodeAll(s.compressed, make([]byte, 0, s.size))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	if uint64(len(image)) != s.size {
		return nil, fmt.Errorf("snapshot image is %d bytes, captured %d", len(image), s.size)
	}
	if blake3.Sum256(image) != s.sum {
		return nil, fmt.Errorf("snapshot checksum mismatch")
	}
	return image, nil
}

// Size returns the uncompressed image size in bytes.
func (s *Snapshot) Size() uint64 { return s.size }

// CompressedSize returns the stored size in bytes.
func (s *Snapshot) CompressedSize() uint64 { return uint64(len(s.compressed)) }

// Checksum returns the hex BLAKE3 digest of the uncompressed image.
func (s *Snapshot) Checksum() string { return hex.EncodeToString(s.sum[:]) }

// Regions returns the mappings recorded at capture time.
func (s *Snapshot) Regions() []Region {
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}
