package treeseq

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// MutationMetadata is the bit-exact 17-byte mutation metadata record of
// §4.9: muttype-id (4), effect (4), origin-subpop (4), origin-tick (4),
// nucleotide (1 signed).
type MutationMetadata struct {
	MutationTypeID int32
	Effect         float32
	OriginSubpopID int32
	OriginTick     int32
	Nucleotide     int8
}

// Encode packs the metadata into its 17-byte little-endian wire form.
func (m MutationMetadata) Encode() []byte {
	buf := make([]byte, 17)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.MutationTypeID))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(m.Effect))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(m.OriginSubpopID))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(m.OriginTick))
	buf[16] = byte(m.Nucleotide)
	return buf
}

// DecodeMutationMetadata unpacks a 17-byte blob produced by Encode.
func DecodeMutationMetadata(buf []byte) (MutationMetadata, error) {
	if len(buf) != 17 {
		return MutationMetadata{}, fmt.Errorf("treeseq: mutation metadata must be 17 bytes, got %d", len(buf))
	}
	return MutationMetadata{
		MutationTypeID: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Effect:         math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
		OriginSubpopID: int32(binary.LittleEndian.Uint32(buf[8:12])),
		OriginTick:     int32(binary.LittleEndian.Uint32(buf[12:16])),
		Nucleotide:     int8(buf[16]),
	}, nil
}

// HaplosomeNodeMetadata is the variable-length node metadata used in
// multi-chromosome models: a haplosome id (8 bytes) plus a bitmap of
// per-chromosome-slot vacancy (§4.9).
type HaplosomeNodeMetadata struct {
	HaplosomeID int64
	IsVacant    []bool // one entry per haplosome slot sharing this node
}

// Encode packs the haplosome id and a little-endian-bit-packed vacancy
// bitmap.
func (h HaplosomeNodeMetadata) Encode() []byte {
	var buf bytes.Buffer
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], uint64(h.HaplosomeID))
	buf.Write(idBuf[:])

	nBytes := (len(h.IsVacant) + 7) / 8
	bits := make([]byte, nBytes)
	for i, vacant := range h.IsVacant {
		if vacant {
			bits[i/8] |= 1 << uint(i%8)
		}
	}
	buf.Write(bits)
	return buf.Bytes()
}

// DecodeHaplosomeNodeMetadata unpacks a blob produced by Encode, given
// the expected slot count (carried externally, e.g. from the species'
// chromosome count, since the blob itself does not self-describe length
// beyond whole bytes).
func DecodeHaplosomeNodeMetadata(buf []byte, slotCount int) (HaplosomeNodeMetadata, error) {
	if len(buf) < 8 {
		return HaplosomeNodeMetadata{}, fmt.Errorf("treeseq: haplosome node metadata must be at least 8 bytes, got %d", len(buf))
	}
	id := int64(binary.LittleEndian.Uint64(buf[0:8]))
	bits := buf[8:]
	vacant := make([]bool, slotCount)
	for i := 0; i < slotCount; i++ {
		byteIdx, bitIdx := i/8, uint(i%8)
		if byteIdx >= len(bits) {
			break
		}
		vacant[i] = bits[byteIdx]&(1<<bitIdx) != 0
	}
	return HaplosomeNodeMetadata{HaplosomeID: id, IsVacant: vacant}, nil
}

// IndividualMetadata is the bit-exact 40-byte individual metadata record
// of §4.9: pedigree id (8), parent1 pedigree id (8), parent2 pedigree id
// (8), age (4), subpop id (4), sex (4), flag bits (4).
type IndividualMetadata struct {
	PedigreeID        int64
	Parent1PedigreeID int64
	Parent2PedigreeID int64
	Age               int32
	SubpopID          int32
	Sex               int32
	FlagBits          uint32
}

// Encode packs the metadata into its 40-byte little-endian wire form.
func (m IndividualMetadata) Encode() []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(m.PedigreeID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.Parent1PedigreeID))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(m.Parent2PedigreeID))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(m.Age))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(m.SubpopID))
	binary.LittleEndian.PutUint32(buf[32:36], uint32(m.Sex))
	binary.LittleEndian.PutUint32(buf[36:40], m.FlagBits)
	return buf
}

// DecodeIndividualMetadata unpacks a 40-byte blob produced by Encode.
func DecodeIndividualMetadata(buf []byte) (IndividualMetadata, error) {
	if len(buf) != 40 {
		return IndividualMetadata{}, fmt.Errorf("treeseq: individual metadata must be 40 bytes, got %d", len(buf))
	}
	return IndividualMetadata{
		PedigreeID:        int64(binary.LittleEndian.Uint64(buf[0:8])),
		Parent1PedigreeID: int64(binary.LittleEndian.Uint64(buf[8:16])),
		Parent2PedigreeID: int64(binary.LittleEndian.Uint64(buf[16:24])),
		Age:               int32(binary.LittleEndian.Uint32(buf[24:28])),
		SubpopID:          int32(binary.LittleEndian.Uint32(buf[28:32])),
		Sex:               int32(binary.LittleEndian.Uint32(buf[32:36])),
		FlagBits:          binary.LittleEndian.Uint32(buf[36:40]),
	}, nil
}
