package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// RefundKeyDeriver produces per-swap refund key pairs. With a seed
// configured, keys are deterministic over a strictly increasing index so the
// operator can re-derive them for an abandoned swap's locked funds; without
// one, keys are ephemeral. The private key is handed to the caller once and
// never persisted alongside the order.
type RefundKeyDeriver struct {
	seed []byte
	next atomic.Uint64
}

func NewRefundKeyDeriver(seedHex string) (*RefundKeyDeriver, error) {
	d := &RefundKeyDeriver{}
	if seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, fmt.Errorf("refund seed must be hex: %w", err)
		}
		if len(seed) < 16 {
			return nil, fmt.Errorf("refund seed too short: %d bytes", len(seed))
		}
		d.seed = seed
	}
	return d, nil
}

// RefundKey is one derived key pair. Index is 0 for ephemeral keys.
type RefundKey struct {
	Index      uint64
	PrivateKey *secp256k1.PrivateKey
	PublicKey  []byte // compressed, 33 bytes
}

func (k RefundKey) PublicKeyHex() string { return hex.EncodeToString(k.PublicKey) }

func (d *RefundKeyDeriver) Deterministic() bool { return len(d.seed) > 0 }

// Next derives the next refund key. Deterministic derivation is
// HMAC-SHA256(seed, index) reduced into the secp256k1 scalar field; the
// negligible chance of an out-of-range digest advances to the next index.
func (d *RefundKeyDeriver) Next() (RefundKey, error) {
	if !d.Deterministic() {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return RefundKey{}, err
		}
		priv := secp256k1.PrivKeyFromBytes(buf[:])
		return RefundKey{PrivateKey: priv, PublicKey: priv.PubKey().SerializeCompressed()}, nil
	}

	for {
		idx := d.next.Add(1)
		mac := hmac.New(sha256.New, d.seed)
		var ib [8]byte
		binary.BigEndian.PutUint64(ib[:], idx)
		mac.Write(ib[:])
		digest := mac.Sum(nil)

		var scalar secp256k1.ModNScalar
		if overflow := scalar.SetByteSlice(digest); overflow || scalar.IsZero() {
			continue
		}
		priv := secp256k1.NewPrivateKey(&scalar)
		return RefundKey{Index: idx, PrivateKey: priv, PublicKey: priv.PubKey().SerializeCompressed()}, nil
	}
}

// At re-derives the key for a known index (operator recovery path).
func (d *RefundKeyDeriver) At(index uint64) (RefundKey, error) {
	if !d.Deterministic() {
		return RefundKey{}, fmt.Errorf("no refund seed configured")
	}
	mac := hmac.New(sha256.New, d.seed)
	var ib [8]byte
	binary.BigEndian.PutUint64(ib[:], index)
	mac.Write(ib[:])
	digest := mac.Sum(nil)

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(digest); overflow || scalar.IsZero() {
		return RefundKey{}, fmt.Errorf("index %d derives no valid key", index)
	}
	priv := secp256k1.NewPrivateKey(&scalar)
	return RefundKey{Index: index, PrivateKey: priv, PublicKey: priv.PubKey().SerializeCompressed()}, nil
}
