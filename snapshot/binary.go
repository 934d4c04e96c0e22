package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/MesserLab/SLiM-sub011/genome"
)

// binarySnapshotVersion is the version tag written at the head of every
// binary snapshot (§6: "version-tagged").
const binarySnapshotVersion uint32 = 1

// binarySnapshotMagic distinguishes a binary snapshot file from other
// formats before any version-dependent parsing begins.
var binarySnapshotMagic = [4]byte{'S', 'N', 'A', 'P'}

// WriteBinary writes the little-endian, version-tagged binary snapshot
// of §6, mirroring the text form field for field. WriteBinary and
// ReadBinary both use little-endian byte order explicitly, whatever the
// host's byte order; the host's byte order is not checked and no warning
// is emitted.
func WriteBinary(w io.Writer, species *genome.Species, block *genome.MutationBlock, chromosomeSymbols map[int]string) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	if _, err := bw.Write(binarySnapshotMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, binarySnapshotVersion); err != nil {
		return err
	}

	refs := CollectOutputHaplosomes(species)
	mutIndices := collectMutationIndices(block, refs)

	if err := binary.Write(bw, binary.LittleEndian, int64(len(mutIndices))); err != nil {
		return err
	}
	for _, idx := range mutIndices {
		m := block.MutationForIndex(idx)
		trait := block.TraitInfoForIndex(idx)
		effect, dominance := 0.0, 0.0
		if len(trait) > 0 {
			effect, dominance = trait[0].Effect, trait[0].Dominance
		}
		fields := []any{
			m.ID, m.MutationTypeID, m.Position, int32(m.ChromosomeIndex),
			effect, dominance, m.OriginSubpopID, m.OriginTick, m.Nucleotide,
		}
		for _, f := range fields {
			if err := binary.Write(bw, binary.LittleEndian, f); err != nil {
				return err
			}
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, int64(len(refs))); err != nil {
		return err
	}
	for _, ref := range refs {
		if err := binary.Write(bw, binary.LittleEndian, ref.SubpopID); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(ref.Index)); err != nil {
			return err
		}
		var ids []int64
		for slot := 0; slot < ref.Haplosome.MutrunCount(); slot++ {
			if run := ref.Haplosome.Run(slot); run != nil {
				for _, idx := range run.Mutations() {
					ids = append(ids, block.MutationForIndex(idx).ID)
				}
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, int64(len(ids))); err != nil {
			return err
		}
		for _, id := range ids {
			if err := binary.Write(bw, binary.LittleEndian, id); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// BinaryMutationRecord mirrors TextMutationRecord for the binary format.
type BinaryMutationRecord struct {
	ID              int64
	MutationTypeID  int32
	Position        int64
	ChromosomeIndex int32
	Effect          float64
	Dominance       float64
	OriginSubpopID  int32
	OriginTick      int64
	Nucleotide      int8
}

// BinaryHaplosomeRecord mirrors TextHaplosomeRecord for the binary format.
type BinaryHaplosomeRecord struct {
	SubpopID    int32
	Index       int32
	MutationIDs []int64
}

// ReadBinary parses a binary snapshot written by WriteBinary.
func ReadBinary(r io.Reader) (version uint32, mutations []BinaryMutationRecord, haplosomes []BinaryHaplosomeRecord, err error) {
	var magic [4]byte
	if _, err = io.ReadFull(r, magic[:]); err != nil {
		return 0, nil, nil, err
	}
	if magic != binarySnapshotMagic {
		return 0, nil, nil, fmt.Errorf("snapshot: not a binary snapshot file (bad magic)")
	}
	if err = binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, nil, nil, err
	}

	var mutCount int64
	if err = binary.Read(r, binary.LittleEndian, &mutCount); err != nil {
		return 0, nil, nil, err
	}
	mutations = make([]BinaryMutationRecord, mutCount)
	for i := range mutations {
		m := &mutations[i]
		for _, f := range []any{&m.ID, &m.MutationTypeID, &m.Position, &m.ChromosomeIndex, &m.Effect, &m.Dominance, &m.OriginSubpopID, &m.OriginTick, &m.Nucleotide} {
			if err = binary.Read(r, binary.LittleEndian, f); err != nil {
				return 0, nil, nil, err
			}
		}
	}

	var hapCount int64
	if err = binary.Read(r, binary.LittleEndian, &hapCount); err != nil {
		return 0, nil, nil, err
	}
	haplosomes = make([]BinaryHaplosomeRecord, hapCount)
	for i := range haplosomes {
		h := &haplosomes[i]
		if err = binary.Read(r, binary.LittleEndian, &h.SubpopID); err != nil {
			return 0, nil, nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &h.Index); err != nil {
			return 0, nil, nil, err
		}
		var n int64
		if err = binary.Read(r, binary.LittleEndian, &n); err != nil {
			return 0, nil, nil, err
		}
		h.MutationIDs = make([]int64, n)
		for j := range h.MutationIDs {
			if err = binary.Read(r, binary.LittleEndian, &h.MutationIDs[j]); err != nil {
				return 0, nil, nil, err
			}
		}
	}

	return version, mutations, haplosomes, nil
}
