// Package crypto implements server-side password hashing and verification.
//
// A stored credential record is a single string:
//
//	pbkdf2-sha256$i=<iterations>$<salt>$<digest>
//	argon2id$v=19$m=<KiB>,t=<passes>,p=<threads>$<salt>$<digest>
//
// Salt and digest are unpadded standard base64. Verification always re-derives
// with the parameters embedded in the record.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Supported schemes.
const (
	SchemePBKDF2   = "pbkdf2-sha256"
	SchemeArgon2id = "argon2id"
)

// Default parameters for newly created records.
const (
	saltLen = 16
	keyLen  = 32

	pbkdf2Iterations = 100_000

	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
)

// Upper bounds accepted from stored records; anything above fails closed.
const (
	maxIterations  = 10_000_000
	maxArgonMemory = 1 << 20 // 1 GB in KiB
	maxArgonTime   = 64
	minDigestLen   = 16
	maxDigestLen   = 64
)

var b64 = base64.RawStdEncoding

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hasher produces credential records with one configured scheme and
// verifies records of any supported scheme.
type Hasher struct {
	scheme string
}

// NewHasher returns a Hasher for scheme. An empty scheme selects PBKDF2.
func NewHasher(scheme string) (*Hasher, error) {
	switch scheme {
	case "":
		scheme = SchemePBKDF2
	case SchemePBKDF2, SchemeArgon2id:
	default:
		return nil, fmt.Errorf("crypto: unsupported hash scheme %q", scheme)
	}
	return &Hasher{scheme: scheme}, nil
}

// Scheme reports the scheme used for new records.
func (h *Hasher) Scheme() string { return h.scheme }

// Hash derives a new record for password with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	var p params
	switch h.scheme {
	case SchemeArgon2id:
		p = params{scheme: SchemeArgon2id, time: argonTime, memory: argonMemory, threads: argonThreads}
	default:
		p = params{scheme: SchemePBKDF2, iterations: pbkdf2Iterations}
	}
	p.salt = salt
	p.digest = p.derive([]byte(password), keyLen)
	return p.String(), nil
}

// Verify reports whether password matches record. Malformed records yield false.
func (h *Hasher) Verify(password, record string) bool {
	p, ok := parseRecord(record)
	if !ok {
		return false
	}
	got := p.derive([]byte(password), len(p.digest))
	return subtle.ConstantTimeCompare(got, p.digest) == 1
}

// NeedsRehash reports whether record was produced with a scheme or parameters
// other than the ones Hash currently uses.
func (h *Hasher) NeedsRehash(record string) bool {
	p, ok := parseRecord(record)
	if !ok || p.scheme != h.scheme || len(p.salt) < saltLen || len(p.digest) != keyLen {
		return true
	}
	switch p.scheme {
	case SchemeArgon2id:
		return p.time != argonTime || p.memory != argonMemory || p.threads != argonThreads
	default:
		return p.iterations != pbkdf2Iterations
	}
}

type params struct {
	scheme     string
	iterations int    // pbkdf2
	time       uint32 // argon2id
	memory     uint32 // argon2id, KiB
	threads    uint8  // argon2id
	salt       []byte
	digest     []byte
}

func (p params) derive(password []byte, n int) []byte {
	if p.scheme == SchemeArgon2id {
		return argon2.IDKey(password, p.salt, p.time, p.memory, p.threads, uint32(n))
	}
	return pbkdf2.Key(password, p.salt, p.iterations, n, sha256.New)
}

func (p params) String() string {
	salt, digest := b64.EncodeToString(p.salt), b64.EncodeToString(p.digest)
	if p.scheme == SchemeArgon2id {
		return fmt.Sprintf("%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
			SchemeArgon2id, argon2.Version, p.memory, p.time, p.threads, salt, digest)
	}
	return fmt.Sprintf("%s$i=%d$%s$%s", SchemePBKDF2, p.iterations, salt, digest)
}

func parseRecord(s string) (params, bool) {
	parts := strings.Split(s, "$")
	var (
		p   params
		ok  bool
		enc []string
	)
	switch {
	case len(parts) == 4 && parts[0] == SchemePBKDF2:
		p.scheme = SchemePBKDF2
		p.iterations, ok = parseIterations(parts[1])
		enc = parts[2:]
	case len(parts) == 5 && parts[0] == SchemeArgon2id:
		if parts[1] != "v="+strconv.Itoa(argon2.Version) {
			return params{}, false
		}
		p.scheme = SchemeArgon2id
		p.memory, p.time, p.threads, ok = parseArgonParams(parts[2])
		enc = parts[3:]
	}
	if !ok {
		return params{}, false
	}

	salt, err := b64.DecodeString(enc[0])
	if err != nil || len(salt) == 0 {
		return params{}, false
	}
	digest, err := b64.DecodeString(enc[1])
	if err != nil || len(digest) < minDigestLen || len(digest) > maxDigestLen {
		return params{}, false
	}
	p.salt, p.digest = salt, digest
	return p, true
}

func parseIterations(s string) (int, bool) {
	v, found := strings.CutPrefix(s, "i=")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxIterations {
		return 0, false
	}
	return n, true
}

func parseArgonParams(s string) (memory, time uint32, threads uint8, ok bool) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return 0, 0, 0, false
	}
	var vals [3]uint64
	for i, key := range []string{"m=", "t=", "p="} {
		v, found := strings.CutPrefix(fields[i], key)
		if !found {
			return 0, 0, 0, false
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, 0, 0, false
		}
		vals[i] = n
	}
	m, t, p := vals[0], vals[1], vals[2]
	if m < 8 || m > maxArgonMemory || t < 1 || t > maxArgonTime || p < 1 || p > 255 {
		return 0, 0, 0, false
	}
	return uint32(m), uint32(t), uint8(p), true
}
