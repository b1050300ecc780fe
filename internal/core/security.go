// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters follow the OWASP minimum recommendation.
var defaultArgonParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

const saltLength = 16

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(password), salt, p.time, p.memory, p.threads, p.keyLen,
	)
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	p := defaultArgonParams
	hash := p.derive(password, salt)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

func VerifyPassword(password, encodedHash string) (bool, error) {
	params, salt, hash, err := parseEncodedHash(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := params.derive(password, salt)
	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// VerifyPasswordWithRehash verifies the password and, when the stored
// hash was produced with stale parameters, returns a replacement hash
// to persist. An empty newHash means the stored one is still current.
func VerifyPasswordWithRehash(
	password, encodedHash string,
) (valid bool, newHash string, err error) {
	valid, err = VerifyPassword(password, encodedHash)
	if err != nil || !valid {
		return false, "", err
	}

	if !needsRehash(encodedHash) {
		return true, "", nil
	}

	newHash, err = HashPassword(password)
	if err != nil {
		// verification already succeeded; skip the upgrade this time
		return true, "", nil
	}

	return true, newHash, nil
}

// dummyHash gives unknown-account verification the same argon2 cost as
// a real one, so login timing does not leak whether an email exists.
var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("timing-equalization-placeholder")
	if err != nil {
		panic(fmt.Sprintf("core: generate dummy hash: %v", err))
	}
	return hash
})

// VerifyPasswordTimingSafe behaves like VerifyPasswordWithRehash but
// accepts a nil or empty hash, burning a full verification against a
// dummy hash before reporting failure.
func VerifyPasswordTimingSafe(
	password string,
	encodedHash *string,
) (bool, string, error) {
	if encodedHash == nil || *encodedHash == "" {
		p := defaultArgonParams
		_, salt, hash, err := parseEncodedHash(dummyHash())
		if err == nil {
			subtle.ConstantTimeCompare(hash, p.derive(password, salt))
		}
		return false, "", nil
	}

	return VerifyPasswordWithRehash(password, *encodedHash)
}

func parseEncodedHash(encodedHash string) (argonParams, []byte, []byte, error) {
	var p argonParams

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return p, nil, nil, errors.New("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("incompatible version: %d", version)
	}

	_, err := fmt.Sscanf(
		parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads,
	)
	if err != nil {
		return p, nil, nil, fmt.Errorf("invalid params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode salt: %w", err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode hash: %w", err)
	}

	//nolint:gosec // G115: argon2 digests are 32 bytes, far below uint32
	p.keyLen = uint32(len(hash))

	return p, salt, hash, nil
}

func needsRehash(encodedHash string) bool {
	params, _, _, err := parseEncodedHash(encodedHash)
	if err != nil {
		return true
	}
	return params != defaultArgonParams
}

func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

func GenerateRefreshToken() (string, error) {
	return GenerateSecureToken(32)
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func CompareTokenHash(token, hash string) bool {
	tokenHash := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(tokenHash), []byte(hash)) == 1
}
