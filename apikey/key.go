// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package apikey implements the credential gate in front of the gateway
// router: key generation, salted hashing, validation, and the key state
// machine (active <-> inactive -> deleted).
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// keyPrefix is the fixed textual prefix of every presented key.
	keyPrefix = "sk"

	// KeyIDLength is the length of the public key identifier segment.
	KeyIDLength = 16

	// SecretLength is the length of the secret segment.
	SecretLength = 32

	// SaltLength is the length of the per-key hash salt.
	SaltLength = 16
)

// alphabet is the fixed alphanumeric alphabet both key segments draw from.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratedKey is the result of key generation. Secret and Display are
// shown to the operator exactly once at creation time and never stored.
type GeneratedKey struct {
	KeyID   string
	Secret  string
	Salt    string
	Hash    string
	Display string
}

// Generate produces a fresh (keyID, secret) pair plus the salted hash
// of the secret. Only KeyID, Salt, and Hash may be persisted.
func Generate() (*GeneratedKey, error) {
	keyID, err := randomString(KeyIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key id: %w", err)
	}
	secret, err := randomString(SecretLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	salt, err := randomString(SaltLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &GeneratedKey{
		KeyID:   keyID,
		Secret:  secret,
		Salt:    salt,
		Hash:    HashSecret(secret, salt),
		Display: fmt.Sprintf("%s_%s_%s", keyPrefix, keyID, secret),
	}, nil
}

// Parse splits a presented key string into its keyID and secret parts.
// Malformed structure fails before any storage lookup happens.
func Parse(presented string) (keyID, secret string, err error) {
	parts := strings.Split(presented, "_")
	if len(parts) != 3 || parts[0] != keyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", &ValidationError{Reason: ReasonMalformed}
	}
	return parts[1], parts[2], nil
}

// HashSecret returns the hex-encoded salted SHA-256 digest of secret.
func HashSecret(secret, salt string) string {
	digest := sha256.Sum256([]byte(salt + secret))
	return hex.EncodeToString(digest[:])
}

// hashEquals compares two hash strings in constant time.
func hashEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// randomString draws n characters from the fixed alphabet using
// crypto/rand. Modulo bias is avoided by rejection sampling.
func randomString(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	// 248 is the largest multiple of len(alphabet) below 256.
	limit := byte(256 - 256%len(alphabet))
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
