package feed

import (
	"encoding/binary"

	"golang.org/x/crypto/salsa20"

	"github.com/lapworks/lapstream-go/internal/core/domain"
)

// cipherKey is the fixed 32-byte Salsa20 key used by the simulator
// interface.
const cipherKey = "Simulator Interface Packet GT7 v"

// ivOffset locates the seed for the per-packet nonce inside the raw
// datagram.
const ivOffset = 64

// ivMask is XORed with the seed to form the second nonce half.
const ivMask = 0xDEADBEAF

// decrypt returns the plaintext of a raw datagram. The nonce is
// derived from the 4-byte seed embedded in the ciphertext itself.
func decrypt(raw []byte) ([]byte, error) {
	if len(raw) < ivOffset+4 {
		return nil, domain.ErrFeedShortPacket
	}

	iv1 := binary.LittleEndian.Uint32(raw[ivOffset : ivOffset+4])
	iv2 := iv1 ^ ivMask

	nonce := make([]byte, 8)
	binary.LittleEndian.PutUint32(nonce[0:4], iv2)
	binary.LittleEndian.PutUint32(nonce[4:8], iv1)

	var key [32]byte
	copy(key[:], cipherKey)

	plain := make([]byte, len(raw))
	salsa20.XORKeyStream(plain, raw, nonce, &key)

	if len(plain) >= 4 && binary.LittleEndian.Uint32(plain[0:4]) != domain.PacketMagic {
		return nil, domain.ErrFeedBadMagic
	}
	return plain, nil
}

// encrypt is the inverse of decrypt, used to synthesize datagrams in
// tests. Salsa20 is symmetric, but the nonce seed must survive in the
// ciphertext, so the seed bytes are restored after the stream pass.
func encrypt(plain []byte) []byte {
	iv1 := binary.LittleEndian.Uint32(plain[ivOffset : ivOffset+4])
	iv2 := iv1 ^ ivMask

	nonce := make([]byte, 8)
	binary.LittleEndian.PutUint32(nonce[0:4], iv2)
	binary.LittleEndian.PutUint32(nonce[4:8], iv1)

	var key [32]byte
	copy(key[:], cipherKey)

	enc := make([]byte, len(plain))
	salsa20.XORKeyStream(enc, plain, nonce, &key)
	binary.LittleEndian.PutUint32(enc[ivOffset:ivOffset+4], iv1)
	return enc
}
