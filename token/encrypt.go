package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/chacha20"
)

// seal obscures a signed token with ChaCha20 keyed by the hash of the shared
// secret. The random nonce is prepended and the result base64url encoded.
func (cd *Codec) seal(signed string) (string, error) {
	nonce := make([]byte, chacha20.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	cipher, err := chacha20.NewUnauthenticatedCipher(cd.cipherKey, nonce)
	if err != nil {
		return "", err
	}

	out := make([]byte, len(signed))
	cipher.XORKeyStream(out, []byte(signed))
	return base64.RawURLEncoding.EncodeToString(append(nonce, out...)), nil
}

func (cd *Codec) open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(raw) <= chacha20.NonceSize {
		return "", errors.New("token: sealed token too short")
	}

	cipher, err := chacha20.NewUnauthenticatedCipher(cd.cipherKey, raw[:chacha20.NonceSize])
	if err != nil {
		return "", err
	}

	body := raw[chacha20.NonceSize:]
	out := make([]byte, len(body))
	cipher.XORKeyStream(out, body)
	return string(out), nil
}
