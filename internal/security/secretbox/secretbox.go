// Package secretbox cifra secretos de larga vida (secretos TOTP) con
// AES-256-GCM antes de persistirlos.
//
// El formato en reposo es base64(nonce)|base64(ciphertext). La clave maestra
// se inyecta al construir el Box, lo que permite claves arbitrarias en tests
// en lugar de depender de estado global.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// EnvMasterKey es la variable de entorno con la clave maestra en base64.
	EnvMasterKey = "DRAMGATE_MASTER_KEY"

	nonceSizeGCM      = 12 // nonce recomendado para GCM (96 bits)
	requiredKeyLength = 32 // 32 bytes => AES-256
	sep               = "|"
)

// ErrKeyMissing indica que no hay clave maestra configurada.
var ErrKeyMissing = fmt.Errorf("%s no seteada; genere una clave con: dramgate genkey", EnvMasterKey)

// Box cifra y descifra con una clave maestra fija.
type Box struct {
	key []byte
}

// New crea un Box con una clave cruda de 32 bytes.
func New(key []byte) (*Box, error) {
	if len(key) != requiredKeyLength {
		return nil, fmt.Errorf("secretbox: la clave debe tener %d bytes, obtuvo %d", requiredKeyLength, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Box{key: k}, nil
}

// FromEnv crea un Box leyendo la clave base64 desde EnvMasterKey.
func FromEnv() (*Box, error) {
	kb64 := strings.TrimSpace(os.Getenv(EnvMasterKey))
	if kb64 == "" {
		return nil, ErrKeyMissing
	}
	k, err := base64.StdEncoding.DecodeString(kb64)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", EnvMasterKey, err)
	}
	return New(k)
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Encrypt(plainText string) (string, error) {
	aesgcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
// Un ciphertext manipulado falla en la verificación de autenticidad de GCM.
func (b *Box) Decrypt(cipherText string) (string, error) {
	parts := strings.Split(cipherText, sep)
	if len(parts) != 2 {
		return "", errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}

	aesgcm, err := b.gcm()
	if err != nil {
		return "", err
	}
	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

func (b *Box) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aesgcm, nil
}

// GenerateKey genera una clave maestra nueva y la retorna en base64,
// lista para exportar como variable de entorno.
func GenerateKey() (string, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := rand.Read(k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}
