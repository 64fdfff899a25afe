// Package totp implementa TOTP (RFC 6238) sobre HOTP/HMAC-SHA1 (RFC 4226).
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// Digits es el largo del código que generan los authenticator apps.
	Digits = 6

	// Period es el paso de tiempo en segundos.
	Period = 30

	secretBytes = 20 // 160 bits por RFC 4226
)

// GenerateSecret retorna secretBytes aleatorios y su base32 sin padding (RFC 3548).
func GenerateSecret() (raw []byte, b32 string, err error) {
	raw = make([]byte, secretBytes)
	if _, err = rand.Read(raw); err != nil {
		return nil, "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
	return raw, enc, nil
}

// DecodeSecret decodifica un secreto base32 sin padding.
func DecodeSecret(b32 string) ([]byte, error) {
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimSpace(b32))
}

// ProvisioningURI construye la URL otpauth:// que se renderiza como QR.
// Forma: otpauth://totp/{issuer}:{account}?secret=...&issuer=...&algorithm=SHA1&digits=6&period=30
func ProvisioningURI(issuer, accountName, secretB32 string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, accountName))
	q := url.Values{}
	q.Set("secret", secretB32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", Digits))
	q.Set("period", fmt.Sprintf("%d", Period))
	return fmt.Sprintf("otpauth://totp/%s?%s", label, q.Encode())
}

// Verify acepta el código del paso actual con tolerancia de ±windowSteps
// pasos de reloj. Los códigos con largo distinto de Digits se rechazan sin
// evaluar. lastCounterUsed (opcional) evita replay: un paso ya aceptado no
// vuelve a aceptarse.
func Verify(secretRaw []byte, code string, t time.Time, windowSteps int, lastCounterUsed *int64) (ok bool, counter int64) {
	code = strings.TrimSpace(code)
	if len(code) != Digits || !allDigits(code) {
		return false, 0
	}
	counter = t.Unix() / Period
	start := counter - int64(windowSteps)
	end := counter + int64(windowSteps)
	for c := start; c <= end; c++ {
		if lastCounterUsed != nil && c <= *lastCounterUsed {
			continue // anti-replay
		}
		if hmac.Equal([]byte(hotp(secretRaw, c)), []byte(code)) {
			return true, c
		}
	}
	return false, 0
}

// CodeAt genera el código del paso que contiene t. Expuesto para tests y
// tooling; la verificación de producción pasa por Verify.
func CodeAt(secretRaw []byte, t time.Time) string {
	return hotp(secretRaw, t.Unix()/Period)
}

func hotp(secretRaw []byte, counter int64) string {
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	m := hmac.New(sha1.New, secretRaw)
	_, _ = m.Write(msg[:])
	sum := m.Sum(nil)
	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 | int(sum[offset+1])<<16 | int(sum[offset+2])<<8 | int(sum[offset+3])
	return fmt.Sprintf("%0*d", Digits, bin%1000000)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
