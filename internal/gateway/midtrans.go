package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// SnapClient = integrasi gateway kedua (Midtrans) untuk checkout interaktif.
// Beda sama gateway utama: Midtrans gak support charge token off-session di
// flow kita, jadi cuma dipakai buat pembayaran DIRECT.
type SnapClient struct {
	client    snap.Client
	serverKey string
}

func NewSnapClient(serverKey string, production bool) *SnapClient {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	return &SnapClient{client: s, serverKey: serverKey}
}

type SnapCustomer struct {
	FullName string
	Email    string
	Phone    string
}

type SnapCheckout struct {
	Token       string
	RedirectURL string
}

// CreateCheckout minta Snap token ke Midtrans buat satu order.
// Frontend tinggal buka RedirectURL / embed token-nya.
func (s *SnapClient) CreateCheckout(merchantOrderID string, amount int64, cust SnapCustomer) (*SnapCheckout, error) {
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  merchantOrderID,
			GrossAmt: amount,
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: cust.FullName,
			Email: cust.Email,
			Phone: cust.Phone,
		},
	}

	resp, errSnap := s.client.CreateTransaction(req)
	if errSnap != nil {
		return nil, &GatewayError{StatusCode: errSnap.GetStatusCode(), Body: errSnap.GetMessage()}
	}

	return &SnapCheckout{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// VerifyMidtransSignature memvalidasi signature_key notifikasi Midtrans:
// sha512(order_id + status_code + gross_amount + server_key), hex lowercase.
func VerifyMidtransSignature(serverKey, orderID, statusCode, grossAmount, signature string) bool {
	if signature == "" {
		return false
	}
	sum := sha512.Sum512([]byte(fmt.Sprintf("%s%s%s%s", orderID, statusCode, grossAmount, serverKey)))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
