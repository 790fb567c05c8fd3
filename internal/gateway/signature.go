package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Daftar field yang masuk hitungan HMAC, urutan ALFABETIS dan fixed.
// Jangan diubah-ubah urutannya, harus sama persis dengan sisi gateway.
var hmacFields = []string{
	"amount",
	"currency",
	"order_id",
	"response_code",
	"success",
	"transaction_id",
}

// canonicalString menyusun "key=value&key=value..." dari field notifikasi.
// Field yang gak ada dianggap string kosong, BUKAN di-skip (biar gak bisa
// dibypass dengan menghilangkan field).
func canonicalString(fields map[string]string) string {
	parts := make([]string, 0, len(hmacFields))
	for _, key := range hmacFields {
		parts = append(parts, key+"="+fields[key])
	}
	return strings.Join(parts, "&")
}

// ComputeHMAC menghitung HMAC-SHA256 atas canonical string.
// Secret dipakai sebagai raw bytes apa adanya. Hasil: hex UPPERCASE.
func ComputeHMAC(secret []byte, fields map[string]string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonicalString(fields)))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// VerifyHMAC membandingkan hash dari notifikasi dengan hitungan kita.
// Pakai hmac.Equal biar constant-time (anti timing attack).
func VerifyHMAC(secret []byte, fields map[string]string, providedHash string) bool {
	if providedHash == "" {
		return false
	}
	expected := ComputeHMAC(secret, fields)
	return hmac.Equal([]byte(expected), []byte(strings.ToUpper(providedHash)))
}
