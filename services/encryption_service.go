package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// Encryptor is the at-rest encryption boundary of the chat transcript store.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AgeEncryptor seals chat messages to a single X25519 key with age. Ciphertext
// is base64 so it fits a text column.
type AgeEncryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeEncryptor parses an AGE-SECRET-KEY-1... key.
func NewAgeEncryptor(secretKey string) (*AgeEncryptor, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(secretKey))
	if err != nil {
		return nil, fmt.Errorf("invalid chat encryption key: %w", err)
	}
	return &AgeEncryptor{identity: identity, recipient: identity.Recipient()}, nil
}

// GenerateAgeEncryptor creates an encryptor with a fresh random key. Messages
// sealed with it are unreadable once the process exits.
func GenerateAgeEncryptor() (*AgeEncryptor, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating chat encryption key: %w", err)
	}
	return &AgeEncryptor{identity: identity, recipient: identity.Recipient()}, nil
}

func (e *AgeEncryptor) Encrypt(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.recipient)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (e *AgeEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), e.identity)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading plaintext: %w", err)
	}
	return string(plaintext), nil
}

var encryptorInstance Encryptor

// InitEncryptor installs the process encryptor from a configured key, or a
// throwaway key when none is configured.
func InitEncryptor(secretKey string) (Encryptor, error) {
	var (
		enc *AgeEncryptor
		err error
	)
	if secretKey == "" {
		enc, err = GenerateAgeEncryptor()
	} else {
		enc, err = NewAgeEncryptor(secretKey)
	}
	if err != nil {
		return nil, err
	}
	encryptorInstance = enc
	return enc, nil
}

// GetEncryptor returns the process encryptor
func GetEncryptor() Encryptor {
	return encryptorInstance
}

// SetEncryptor sets the process encryptor (primarily for testing)
func SetEncryptor(e Encryptor) {
	encryptorInstance = e
}
