package gateway

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var sigSecret = []byte("kunci-rahasia-test")

func sampleFields() map[string]string {
	return map[string]string{
		"amount":         "50000",
		"currency":       "IDR",
		"order_id":       "GW-123",
		"response_code":  "00",
		"success":        "true",
		"transaction_id": "T-999",
	}
}

func TestComputeHMAC_Format(t *testing.T) {
	hash := ComputeHMAC(sigSecret, sampleFields())

	// SHA-256 hex = 64 karakter, dan kontraknya UPPERCASE
	assert.Len(t, hash, 64)
	assert.Equal(t, strings.ToUpper(hash), hash)

	// Deterministik: input sama → hash sama
	assert.Equal(t, hash, ComputeHMAC(sigSecret, sampleFields()))
}

func TestVerifyHMAC_Roundtrip(t *testing.T) {
	fields := sampleFields()
	hash := ComputeHMAC(sigSecret, fields)

	assert.True(t, VerifyHMAC(sigSecret, fields, hash))

	// Gateway lain kadang ngirim hex lowercase, tetap harus diterima
	assert.True(t, VerifyHMAC(sigSecret, fields, strings.ToLower(hash)))
}

func TestVerifyHMAC_TamperDetected(t *testing.T) {
	fields := sampleFields()
	hash := ComputeHMAC(sigSecret, fields)

	// Satu field diubah → hash lama gak laku lagi
	fields["amount"] = "999999"
	assert.False(t, VerifyHMAC(sigSecret, fields, hash))
}

func TestVerifyHMAC_WrongSecret(t *testing.T) {
	hash := ComputeHMAC(sigSecret, sampleFields())
	assert.False(t, VerifyHMAC([]byte("secret-lain"), sampleFields(), hash))
}

func TestVerifyHMAC_EmptyHashRejected(t *testing.T) {
	assert.False(t, VerifyHMAC(sigSecret, sampleFields(), ""))
}

// Field yang hilang dihitung sebagai string kosong, bukan di-skip.
// Jadi map tanpa "currency" == map dengan currency="".
func TestComputeHMAC_MissingFieldIsEmptyString(t *testing.T) {
	withEmpty := sampleFields()
	withEmpty["currency"] = ""

	without := sampleFields()
	delete(without, "currency")

	assert.Equal(t, ComputeHMAC(sigSecret, withEmpty), ComputeHMAC(sigSecret, without))
}

// Field di luar daftar fixed gak boleh ngaruh ke hash.
func TestComputeHMAC_IgnoresUnknownFields(t *testing.T) {
	base := ComputeHMAC(sigSecret, sampleFields())

	extra := sampleFields()
	extra["field_ngawur"] = "apapun"
	assert.Equal(t, base, ComputeHMAC(sigSecret, extra))
}

func TestVerifyMidtransSignature(t *testing.T) {
	serverKey := "SB-Mid-server-test"
	orderID := "INV-42-1700000000"
	statusCode := "200"
	grossAmount := "150000.00"

	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	valid := hex.EncodeToString(sum[:])

	assert.True(t, VerifyMidtransSignature(serverKey, orderID, statusCode, grossAmount, valid))
	assert.False(t, VerifyMidtransSignature(serverKey, orderID, "201", grossAmount, valid))
	assert.False(t, VerifyMidtransSignature("server-key-lain", orderID, statusCode, grossAmount, valid))
	assert.False(t, VerifyMidtransSignature(serverKey, orderID, statusCode, grossAmount, ""))
}
