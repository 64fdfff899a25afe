// Package tokens genera tokens opacos y hashes one-way para credenciales
// de un solo uso (backup codes, challenge tokens).
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
// Es el formato que se persiste en DB; el plano nunca se guarda.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// BackupCodeAlphabet excluye caracteres ambiguos (I, O, 0, 1).
const BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// BackupCodeLength es el largo de cada backup code.
const BackupCodeLength = 10

// GenerateBackupCodes genera count códigos de un solo uso. Devuelve los
// planos (se muestran una única vez) y sus hashes (lo único que se retiene).
func GenerateBackupCodes(count int) (plain []string, hashes []string, err error) {
	plain = make([]string, count)
	hashes = make([]string, count)
	buf := make([]byte, BackupCodeLength)
	for i := 0; i < count; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		code := make([]byte, BackupCodeLength)
		for j, b := range buf {
			code[j] = BackupCodeAlphabet[int(b)%len(BackupCodeAlphabet)]
		}
		plain[i] = string(code)
		hashes[i] = SHA256Base64URL(string(code))
	}
	return plain, hashes, nil
}
