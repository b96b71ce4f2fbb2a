package keypair

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
)

// SLIP-0010 ed25519 key derivation. Only hardened derivation exists for
// ed25519, so every path segment is treated as hardened.

const hardenedOffset uint32 = 0x80000000

type slip10Node struct {
	key       []byte // 32-byte private key seed
	chainCode []byte
}

func slip10Master(seed []byte) slip10Node {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return slip10Node{key: sum[:32], chainCode: sum[32:]}
}

func (n slip10Node) child(index uint32) slip10Node {
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, n.key...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index|hardenedOffset)
	data = append(data, idx[:]...)

	mac := hmac.New(sha512.New, n.chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return slip10Node{key: sum[:32], chainCode: sum[32:]}
}

// derivePath walks a fully hardened path like m/44'/784'/0'/0'/0'.
func derivePath(seed []byte, path []uint32) ([]byte, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("empty seed")
	}
	node := slip10Master(seed)
	for _, index := range path {
		node = node.child(index)
	}
	return node.key, nil
}
