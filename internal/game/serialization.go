package game

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ChecksumVersion identifies the canonical form hashed by ComputeChecksum.
const ChecksumVersion = 1

// Checksum is a deterministic digest of a game state. Peers and replays
// compare checksums to detect divergent states.
type Checksum struct {
	Hash    string `json:"hash"`
	Version int    `json:"version"`
}

// ComputeChecksum hashes the canonical JSON form of g with BLAKE2b-256.
// Every field of the state is ordered (structs, sorted registries, two-slot
// per-player values) so equal states give equal hashes.
func (g Game) ComputeChecksum() (Checksum, error) {
	data, err := g.canonicalBytes()
	if err != nil {
		return Checksum{}, err
	}
	sum := blake2b.Sum256(data)
	return Checksum{Hash: hex.EncodeToString(sum[:]), Version: ChecksumVersion}, nil
}

func (g Game) canonicalBytes() ([]byte, error) {
	data, err := json.Marshal(g.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// VerifyChecksum reports whether g hashes to expected.
func (g Game) VerifyChecksum(expected Checksum) (bool, error) {
	if expected.Version != ChecksumVersion {
		return false, fmt.Errorf("unsupported checksum version %d", expected.Version)
	}
	computed, err := g.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes encodes g in its canonical JSON form, the snapshot format
// stored alongside the action ledger.
func (g Game) SerializeToBytes() ([]byte, error) {
	return g.canonicalBytes()
}

// DeserializeFromBytes decodes a game encoded by SerializeToBytes.
func DeserializeFromBytes(data []byte) (Game, error) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return Game{}, fmt.Errorf("failed to decode game: %w", err)
	}
	return g, nil
}

// ValidateSerializationRoundtrip checks that g survives an encode/decode
// round trip without changing its checksum.
func ValidateSerializationRoundtrip(g Game) error {
	original, err := g.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := g.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	roundtrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}
