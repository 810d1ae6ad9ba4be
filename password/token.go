package password

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// tokenBytes gives opaque tokens 256 bits of entropy.
const tokenBytes = 32

// DummyHash is a well-formed Argon2id hash that matches no password. Login
// verifies against it when the looked-up user does not exist (or has no
// password set), so the "user not found" path performs the same amount of
// work as the "wrong password" path and the two stay statistically
// indistinguishable on the wire. Its cost parameters mirror the package
// defaults (m=65536, t=3, p=2).
const DummyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA==$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

// GenerateToken returns a fresh opaque bearer token: 32 random bytes in
// unpadded base64url.
func GenerateToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the hex SHA-256 digest of an opaque token. Opaque tokens
// already carry 256 bits of entropy, so a fast digest (not a memory-hard
// one) is enough to keep raw bearer tokens out of the datastore.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
