package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Keys holds the per-purpose keys derived from the single configured secret.
type Keys struct {
	Session []byte // signs session JWTs
	Handoff []byte // encrypts handoff payloads (32 bytes)
	Cookie  []byte // encrypts cookie payloads (32 bytes)
}

// DeriveKeys expands secret into independent keys with HKDF-SHA256.
func DeriveKeys(secret []byte) (Keys, error) {
	if len(secret) < 32 {
		return Keys{}, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	derive := func(info string) ([]byte, error) {
		out := make([]byte, 32)
		r := hkdf.New(sha256.New, secret, nil, []byte("gamefront/"+info))
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, fmt.Errorf("deriving %s key: %w", info, err)
		}
		return out, nil
	}

	var keys Keys
	var err error
	if keys.Session, err = derive("session"); err != nil {
		return Keys{}, err
	}
	if keys.Handoff, err = derive("handoff"); err != nil {
		return Keys{}, err
	}
	if keys.Cookie, err = derive("cookie"); err != nil {
		return Keys{}, err
	}
	return keys, nil
}
