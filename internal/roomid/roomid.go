// Package roomid generates identifiers for room instances. Ids embed the
// stake amount for log readability and carry a UUIDv7 suffix so successive
// instances for the same stake sort by creation time.
package roomid

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// RandSource interface for dependency injection of randomness
type RandSource interface {
	Intn(n int) int
}

// Generator handles room ID generation with configurable randomness
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a new generator with optional RandSource
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// New creates an id for a room instance at the given stake amount,
// in the form "room_<stake>_<26 char base32 uuid>".
func New(stakeAmount int) string {
	return NewGenerator(nil).New(stakeAmount)
}

// New creates a room id using the generator's RandSource
func (g *Generator) New(stakeAmount int) string {
	uuid := g.generateUUIDv7()
	return fmt.Sprintf("room_%d_%s", stakeAmount, encodeBase32(uuid))
}

// generateUUIDv7 creates a 128-bit UUIDv7
func (g *Generator) generateUUIDv7() [16]byte {
	var uuid [16]byte

	// UUIDv7 format:
	// 48-bit timestamp (milliseconds since Unix epoch)
	// 12-bit random data for sub-millisecond precision
	// 4-bit version (0111 for version 7)
	// 2-bit variant (10)
	// 62-bit random data

	now := time.Now().UnixMilli()

	// Set 48-bit timestamp in first 6 bytes
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	// Fill remaining 10 bytes with random data
	if g.randSource != nil {
		// Use provided RandSource for deterministic testing
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.randSource.Intn(256))
		}
	} else {
		// Use crypto/rand for production
		if _, err := rand.Read(uuid[6:]); err != nil {
			panic("failed to generate random bytes: " + err.Error())
		}
	}

	// Set version (4 bits) to 7 (0111)
	uuid[6] = (uuid[6] & 0x0f) | 0x70

	// Set variant (2 bits) to 10
	uuid[8] = (uuid[8] & 0x3f) | 0x80

	return uuid
}

// encodeBase32 encodes a 128-bit UUID as a 26-character base32 string
func encodeBase32(data [16]byte) string {
	result := make([]byte, 26)

	// Encode in groups of 5 bits each
	for i := 0; i < 26; i++ {
		bitOffset := i * 5
		byteIndex := bitOffset / 8
		bitIndex := bitOffset % 8

		var value uint8

		if byteIndex < 16 {
			// Get 5 bits starting at the current position
			if bitIndex <= 3 {
				// All 5 bits are in the same byte
				value = (data[byteIndex] >> (3 - bitIndex)) & 0x1f
			} else {
				// Bits span two bytes
				value = (data[byteIndex] << (bitIndex - 3)) & 0x1f
				if byteIndex+1 < 16 {
					value |= data[byteIndex+1] >> (11 - bitIndex)
				}
			}
		}

		result[i] = alphabet[value]
	}

	return string(result)
}

// Stake extracts the stake amount embedded in a room id.
func Stake(id string) (int, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != "room" {
		return 0, fmt.Errorf("malformed room id %q", id)
	}
	stake, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed stake in room id %q", id)
	}
	return stake, nil
}

// Validate checks that a room id is well formed: the room_<stake>_ prefix
// followed by a 26-character base32 suffix.
func Validate(id string) error {
	if _, err := Stake(id); err != nil {
		return err
	}

	suffix := id[strings.LastIndex(id, "_")+1:]
	if len(suffix) != 26 {
		return fmt.Errorf("room id suffix must be exactly 26 characters, got %d", len(suffix))
	}

	// First character above '7' would encode more than 128 bits
	if suffix[0] > '7' {
		return fmt.Errorf("room id suffix first character must be 0-7, got %c", suffix[0])
	}

	for i, char := range suffix {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}

	return nil
}
