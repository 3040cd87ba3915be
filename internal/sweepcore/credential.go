package sweepcore

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Credential holds one private key. The key never leaves the package;
// fmt and zerolog see the derived address only.
type Credential struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// ParseCredential accepts a hex secp256k1 key with or without 0x.
// Errors never echo the input.
func ParseCredential(s string) (Credential, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(h) == 0 {
		return Credential{}, errors.New("empty private key")
	}
	if len(h) != 64 {
		return Credential{}, errors.Errorf("private key must be 64 hex chars, got %d", len(h))
	}
	prv, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return Credential{}, errors.New("private key is not valid secp256k1 hex")
	}
	return NewCredential(prv), nil
}

func NewCredential(prv *ecdsa.PrivateKey) Credential {
	return Credential{key: prv, addr: gethcrypto.PubkeyToAddress(prv.PublicKey)}
}

func (c Credential) Address() common.Address { return c.addr }

func (c Credential) String() string { return ShortAddress(c.addr) }

// GoString keeps %#v from dumping the key.
func (c Credential) GoString() string { return "Credential(" + c.addr.Hex() + ")" }

func (c Credential) valid() bool { return c.key != nil }

// ShortAddress renders 0x1234…abcd.
func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}
