package provider

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160"
)

// p2wpkhAddress returns the mainnet bc1 address for a compressed public key.
// Witness v0 only; nothing here decodes or validates foreign addresses.
func p2wpkhAddress(compressedPub []byte) (string, error) {
	if len(compressedPub) != 33 {
		return "", fmt.Errorf("want 33-byte compressed pubkey, got %d", len(compressedPub))
	}
	sha := sha256.Sum256(compressedPub)
	rip := ripemd160.New()
	rip.Write(sha[:])
	prog := rip.Sum(nil)

	conv, err := bech32.ConvertBits(prog, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode("bc", append([]byte{0}, conv...))
}
