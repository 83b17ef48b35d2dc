// Package admin — service.go: проверка ключа админского API (Argon2id)
// и защита от перебора.
package admin

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
)

// KeyVerifier сверяет присланный ключ с хешем из ADMIN_API_KEY_HASH.
type KeyVerifier struct {
	encodedHash string
}

// NewKeyVerifier проверяет формат хеша заранее, чтобы не узнать о нём на первом запросе.
func NewKeyVerifier(encodedHash string) (*KeyVerifier, error) {
	if _, err := parseArgon2id(encodedHash); err != nil {
		return nil, err
	}
	return &KeyVerifier{encodedHash: encodedHash}, nil
}

// Verify возвращает true, если ключ совпал.
func (v *KeyVerifier) Verify(key string) bool {
	if key == "" {
		return false
	}
	return verifyArgon2id(key, v.encodedHash)
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// parseArgon2id разбирает хеш формата $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func parseArgon2id(encodedHash string) (*argon2Params, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("некорректный формат хеша Argon2id")
	}

	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return nil, fmt.Errorf("ошибка парсинга параметров Argon2id: %w", err)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("ошибка декодирования соли: %w", err)
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("ошибка декодирования хеша: %w", err)
	}
	if len(p.hash) == 0 {
		return nil, fmt.Errorf("пустой хеш Argon2id")
	}
	return &p, nil
}

// verifyArgon2id проверяет ключ по хешу Argon2id.
func verifyArgon2id(key, encodedHash string) bool {
	p, err := parseArgon2id(encodedHash)
	if err != nil {
		log.WithError(err).Error("Хеш ключа админского API не разобран")
		return false
	}

	computed := argon2.IDKey([]byte(key), p.salt, p.iterations, p.memory, p.parallelism, uint32(len(p.hash)))

	// Сравниваем в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computed, p.hash) == 1
}
