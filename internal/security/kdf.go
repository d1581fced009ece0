package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters (OWASP recommendations)
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 2
	saltLength    = 16
)

// KDFParams describes how a key-encryption key is derived from a passphrase.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	Salt    []byte
}

// NewKDFParams returns the default parameters with a fresh random salt
func NewKDFParams() (KDFParams, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return KDFParams{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	return KDFParams{
		Time:    argon2Time,
		Memory:  argon2Memory,
		Threads: argon2Threads,
		Salt:    salt,
	}, nil
}

// DeriveKEK derives a 32-byte key-encryption key using Argon2id
func DeriveKEK(passphrase string, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), p.Salt, p.Time, p.Memory, p.Threads, KeySize)
}

// Encode renders the parameters in the PHC-like form $argon2id$v=..$m=..,t=..,p=..$salt
func (p KDFParams) Encode() string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version,
		p.Memory,
		p.Time,
		p.Threads,
		base64.RawStdEncoding.EncodeToString(p.Salt),
	)
}

// ParseKDFParams parses the output of Encode
func ParseKDFParams(encoded string) (KDFParams, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != "argon2id" {
		return KDFParams{}, fmt.Errorf("invalid kdf header format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return KDFParams{}, fmt.Errorf("failed to parse version: %w", err)
	}

	if version != argon2.Version {
		return KDFParams{}, fmt.Errorf("incompatible argon2 version")
	}

	var p KDFParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return KDFParams{}, fmt.Errorf("failed to parse parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return KDFParams{}, fmt.Errorf("failed to decode salt: %w", err)
	}
	p.Salt = salt

	return p, nil
}
