package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"billing-backend/internal/gateway"
	"billing-backend/internal/models"
	"billing-backend/internal/repository"
	"billing-backend/pkg/utils"

	"gorm.io/datatypes"

	"go.uber.org/zap"
)

// ErrAuthenticity: signature webhook gak cocok. Ledger TIDAK boleh disentuh.
var ErrAuthenticity = errors.New("signature webhook tidak valid")

// PushFunc = pengiriman notifikasi (FCM). Fire-and-forget, dipanggil pakai
// goroutine biar response webhook gak ketahan.
type PushFunc func(token, title, body string, data map[string]string) error

// GatewayNotification = body webhook dari gateway utama.
type GatewayNotification struct {
	Type string             `json:"type"` // Cuma TRANSACTION yang diproses
	HMAC string             `json:"hmac"`
	Obj  GatewayTransaction `json:"obj"`
}

type GatewayTransaction struct {
	ID              string               `json:"id"` // ID transaksi di sisi gateway
	Success         bool                 `json:"success"`
	Pending         bool                 `json:"pending"`
	Amount          int64                `json:"amount"` // Minor units
	Currency        string               `json:"currency"`
	ResponseCode    string               `json:"response_code"`
	Order           GatewayOrderRef      `json:"order"`
	Metadata        NotificationMetadata `json:"metadata"` // Echo dari request intention kita
	ItemDescription string               `json:"item_description"`
}

type GatewayOrderRef struct {
	ID string `json:"id"`
}

type NotificationMetadata struct {
	OrderID     string `json:"order_id"`
	PaymentType string `json:"payment_type"`
	UserID      string `json:"user_id"`
}

// MidtransNotification = body webhook Midtrans (gateway kedua).
type MidtransNotification struct {
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"` // Ini merchant order id kita (INV-xxx)
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	FraudStatus       string `json:"fraud_status"`
	SignatureKey      string `json:"signature_key"`
}

// Order id bisa nyelip di deskripsi item untuk payment link ("... ORDER-123 ...")
var orderRefPattern = regexp.MustCompile(`ORDER-(\d+)`)

// Reconciler menerima notifikasi gateway dan menurunkannya jadi state
// ledger/order/wallet/plan yang otoritatif. Semua jalur idempotent: gateway
// boleh (dan memang) ngirim webhook yang sama lebih dari sekali.
type Reconciler struct {
	ledger  *LedgerService
	orders  repository.OrderRepository
	users   repository.UserRepository
	plans   repository.PlanRepository
	wallets repository.WalletRepository
	tx      repository.TxManager

	hmacSecret        []byte
	midtransServerKey string

	push PushFunc
	log  *zap.SugaredLogger
}

func NewReconciler(
	ledger *LedgerService,
	orders repository.OrderRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	wallets repository.WalletRepository,
	tx repository.TxManager,
	hmacSecret []byte,
	midtransServerKey string,
	push PushFunc,
	log *zap.SugaredLogger,
) *Reconciler {
	return &Reconciler{
		ledger:            ledger,
		orders:            orders,
		users:             users,
		plans:             plans,
		wallets:           wallets,
		tx:                tx,
		hmacSecret:        hmacSecret,
		midtransServerKey: midtransServerKey,
		push:              push,
		log:               log,
	}
}

// HandleGatewayNotification memproses satu webhook gateway utama.
// Return nil = sudah diproses/diabaikan (balas 200).
// Return error = gagal di tengah, handler balas non-2xx biar gateway kirim ulang.
func (r *Reconciler) HandleGatewayNotification(ctx context.Context, rawBody []byte) error {
	var notif GatewayNotification
	if err := json.Unmarshal(rawBody, &notif); err != nil {
		return fmt.Errorf("body webhook bukan JSON valid: %w", err)
	}

	// 1. Cuma event transaksi selesai yang kita urus
	if notif.Type != "TRANSACTION" {
		r.log.Infow("webhook bukan event transaksi, diabaikan", "type", notif.Type)
		return nil
	}
	if notif.Obj.Pending {
		// Belum final, tunggu webhook berikutnya
		return nil
	}

	// 2. Verifikasi HMAC sebelum nyentuh apapun
	if !gateway.VerifyHMAC(r.hmacSecret, hmacFieldsFromNotification(&notif), notif.HMAC) {
		r.log.Warnw("HMAC webhook tidak cocok, ditolak", "gateway_txn", notif.Obj.ID)
		return ErrAuthenticity
	}

	// 3. Ambil order id + payment type dari metadata yang di-echo gateway
	paymentType := notif.Obj.Metadata.PaymentType
	orderRef := notif.Obj.Metadata.OrderID
	if paymentType == models.KindPaymentLink && orderRef == "" {
		// Payment link gak bawa metadata, order id nyelip di deskripsi item
		if m := orderRefPattern.FindStringSubmatch(notif.Obj.ItemDescription); m != nil {
			orderRef = m[1]
		}
	}

	fields := repository.ResolveFields{
		Status:               models.TxStatusFailed,
		Success:              notif.Obj.Success,
		GatewayTransactionID: notif.Obj.ID,
		GatewayOrderID:       notif.Obj.Order.ID,
		RawPayload:           datatypes.JSON(rawBody),
	}
	if notif.Obj.Success {
		fields.Status = models.TxStatusSuccess
	}

	// 4. Dispatch per jenis pembayaran — SATU transaksi DB per webhook.
	// Baris ledger dan efek sampingnya (order/plan/wallet) harus commit bareng:
	// kalau gagal di tengah, semua di-rollback, baris ledger balik PENDING
	// (atau gak pernah ada), dan kiriman ulang dari gateway ngulang dari nol.
	// Tanpa ini, baris yang keburu final bikin retry di-skip selamanya dan
	// efek yang ketinggalan (saldo, counter cicilan) gak pernah kejadian.
	return r.tx.Transact(ctx, func(ctx context.Context) error {
		switch paymentType {
		case models.KindDirect, models.KindPaymentLink:
			return r.applyDirect(ctx, paymentType, orderRef, fields)
		case models.KindAdvance:
			return r.applyAdvance(ctx, orderRef, fields)
		case models.KindDue:
			return r.applyDue(ctx, orderRef, &notif, fields)
		case models.KindEMI:
			return r.applyEMI(ctx, orderRef, &notif, fields)
		case models.KindWalletRecharge:
			return r.applyWalletRecharge(ctx, &notif, fields)
		default:
			r.log.Warnw("payment type tidak dikenal, webhook diabaikan", "payment_type", paymentType)
			return nil
		}
	})
}

// hmacFieldsFromNotification menyusun field yang masuk hitungan HMAC.
// Harus konsisten dengan daftar fixed di package gateway.
func hmacFieldsFromNotification(n *GatewayNotification) map[string]string {
	return map[string]string{
		"amount":         strconv.FormatInt(n.Obj.Amount, 10),
		"currency":       n.Obj.Currency,
		"order_id":       n.Obj.Order.ID,
		"response_code":  n.Obj.ResponseCode,
		"success":        strconv.FormatBool(n.Obj.Success),
		"transaction_id": n.Obj.ID,
	}
}

func (r *Reconciler) applyDirect(ctx context.Context, kind, orderRef string, fields repository.ResolveFields) error {
	orderID := parseOrderRef(orderRef)
	if orderID == 0 {
		return fmt.Errorf("order id tidak ketemu di notifikasi %s", kind)
	}

	trx, applied, err := r.ledger.ResolveAuthoritative(ctx, kind, orderID, fields)
	if err != nil {
		return err
	}
	if !applied || !fields.Success {
		return nil
	}

	// Sukses penuh: order lunas
	if err := r.orders.UpdateStatus(ctx, orderID, models.OrderStatusPaid, nil); err != nil {
		return err
	}
	r.notifyUser(trx.UserID, "Pembayaran Berhasil! ✅",
		"Terima kasih! Pembayaran Anda sudah kami terima.",
		map[string]string{"order_id": strconv.FormatUint(orderID, 10), "type": "payment_success"})
	return nil
}

func (r *Reconciler) applyAdvance(ctx context.Context, orderRef string, fields repository.ResolveFields) error {
	orderID := parseOrderRef(orderRef)
	if orderID == 0 {
		return errors.New("order id tidak ketemu di notifikasi ADVANCE")
	}

	// Uang muka: transaksinya dicatat, tapi status order SENGAJA tidak diubah.
	// Order masih terbuka sampai sisanya dibayar.
	_, _, err := r.ledger.ResolveAuthoritative(ctx, models.KindAdvance, orderID, fields)
	return err
}

func (r *Reconciler) applyDue(ctx context.Context, orderRef string, notif *GatewayNotification, fields repository.ResolveFields) error {
	orderID := parseOrderRef(orderRef)
	if orderID == 0 {
		return errors.New("order id tidak ketemu di notifikasi DUE")
	}

	// Tagihan sisa gak pernah dicatat pas charge dimulai, jadi barisnya
	// dibuat di sini (append per attempt)
	_, applied, err := r.ledger.AppendAttempt(ctx, Attempt{
		Kind:       models.KindDue,
		OrderID:    &orderID,
		UserID:     parseOrderRef(notif.Obj.Metadata.UserID),
		Amount:     notif.Obj.Amount,
		Resolution: fields,
	})
	if err != nil {
		return err
	}
	if !applied || !fields.Success {
		return nil
	}

	// Sisa tagihan lunas: nol-kan due amount, order jadi PAID
	if err := r.orders.UpdateDueAmount(ctx, orderID, 0); err != nil {
		return err
	}
	return r.orders.UpdateStatus(ctx, orderID, models.OrderStatusPaid, nil)
}

func (r *Reconciler) applyEMI(ctx context.Context, orderRef string, notif *GatewayNotification, fields repository.ResolveFields) error {
	orderID := parseOrderRef(orderRef)
	if orderID == 0 {
		return errors.New("order id tidak ketemu di notifikasi EMI")
	}

	// Cicilan pertama dibuat PENDING dari endpoint intention; kalau masih ada
	// baris PENDING berarti ini webhook cicilan pertama. Kalau nggak, berarti
	// tagihan lanjutan dari scheduler.
	if _, err := r.ledger.FindPendingFirstEMI(ctx, orderID); err == nil {
		return r.applyFirstEMI(ctx, orderID, fields)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return r.applyRecurringEMI(ctx, orderID, notif, fields)
}

func (r *Reconciler) applyFirstEMI(ctx context.Context, orderID uint64, fields repository.ResolveFields) error {
	trx, applied, err := r.ledger.ResolveAuthoritative(ctx, models.KindEMI, orderID, fields)
	if err != nil {
		return err
	}
	if !applied || !fields.Success {
		return nil
	}

	// Cicilan pertama sukses: order TETAP PENDING (masih ada sisa cicilan),
	// tapi gateway order id disimpan — scheduler butuh ini buat nyari token kartu
	gatewayOrderID := fields.GatewayOrderID
	if err := r.orders.UpdateStatus(ctx, orderID, models.OrderStatusPending, &gatewayOrderID); err != nil {
		return err
	}
	r.notifyUser(trx.UserID, "Cicilan Pertama Berhasil! ✅",
		"Pembayaran cicilan pertama Anda sudah kami terima.",
		map[string]string{"order_id": strconv.FormatUint(orderID, 10), "type": "emi_first_success"})
	return nil
}

func (r *Reconciler) applyRecurringEMI(ctx context.Context, orderID uint64, notif *GatewayNotification, fields repository.ResolveFields) error {
	trx, applied, err := r.ledger.AppendAttempt(ctx, Attempt{
		Kind:       models.KindEMI,
		OrderID:    &orderID,
		UserID:     parseOrderRef(notif.Obj.Metadata.UserID),
		Amount:     notif.Obj.Amount,
		Resolution: fields,
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil // Replay: jangan gerakkan plan lagi
	}

	plan, err := r.plans.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	if !fields.Success {
		// Gagal nagih: counter TIDAK berubah, coba lagi besok
		retry := time.Now().Add(24 * time.Hour)
		if err := r.plans.Reschedule(ctx, plan.ID, retry); err != nil {
			return err
		}
		r.notifyUser(trx.UserID, "Penagihan Cicilan Gagal ❌",
			"Penagihan cicilan Anda gagal. Kami akan coba lagi besok, pastikan saldo kartu cukup ya.",
			map[string]string{"order_id": strconv.FormatUint(orderID, 10), "type": "emi_failed"})
		return nil
	}

	newPaid := plan.InstallmentsPaid + 1
	if newPaid >= plan.InstallmentCount {
		// Cicilan terakhir: plan ditutup, jadwal dihapus, order lunas
		if err := r.plans.Advance(ctx, plan.ID, models.PlanStatusCompleted, nil); err != nil {
			return err
		}
		if err := r.orders.UpdateStatus(ctx, orderID, models.OrderStatusPaid, nil); err != nil {
			return err
		}
		r.notifyUser(trx.UserID, "Cicilan Lunas! 🎉",
			"Semua cicilan Anda sudah lunas. Terima kasih!",
			map[string]string{"order_id": strconv.FormatUint(orderID, 10), "type": "emi_completed"})
		return nil
	}

	next := time.Now().Add(30 * 24 * time.Hour)
	return r.plans.Advance(ctx, plan.ID, models.PlanStatusOngoing, &next)
}

func (r *Reconciler) applyWalletRecharge(ctx context.Context, notif *GatewayNotification, fields repository.ResolveFields) error {
	userID := parseOrderRef(notif.Obj.Metadata.UserID)
	if userID == 0 {
		return errors.New("user id tidak ketemu di notifikasi WALLET_RECHARGE")
	}

	// Top-up gak nempel ke order manapun (OrderID nil)
	_, applied, err := r.ledger.AppendAttempt(ctx, Attempt{
		Kind:       models.KindWalletRecharge,
		UserID:     userID,
		Amount:     notif.Obj.Amount,
		Resolution: fields,
	})
	if err != nil {
		return err
	}
	if !applied || !fields.Success {
		return nil
	}

	// Saldo cuma boleh gerak sekali per reference — Credit sudah jaga itu,
	// double guard sama cek applied di atas
	entry, err := r.wallets.Credit(ctx, userID, notif.Obj.Amount, notif.Obj.ID)
	if err != nil {
		return err
	}

	r.notifyUser(userID, "Top Up Berhasil! 💰",
		fmt.Sprintf("Saldo dompet Anda bertambah. Saldo sekarang: %d", entry.BalanceAfter),
		map[string]string{"type": "wallet_recharge"})
	return nil
}

// HandleMidtransNotification memproses webhook Midtrans (checkout interaktif).
// Status pending diabaikan; capture/settlement = sukses; deny/cancel/expire = gagal.
func (r *Reconciler) HandleMidtransNotification(ctx context.Context, rawBody []byte) error {
	var notif MidtransNotification
	if err := json.Unmarshal(rawBody, &notif); err != nil {
		return fmt.Errorf("body notifikasi midtrans bukan JSON valid: %w", err)
	}

	if !gateway.VerifyMidtransSignature(r.midtransServerKey, notif.OrderID, notif.StatusCode, notif.GrossAmount, notif.SignatureKey) {
		r.log.Warnw("signature midtrans tidak cocok, ditolak", "order_id", notif.OrderID)
		return ErrAuthenticity
	}

	var success bool
	switch notif.TransactionStatus {
	case "capture":
		if notif.FraudStatus == "challenge" {
			return nil // Masih diverifikasi bank, tunggu notifikasi berikutnya
		}
		success = true
	case "settlement":
		success = true
	case "deny", "cancel", "expire":
		success = false
	default:
		// pending dan status lain: belum final
		return nil
	}

	// Merchant order id kita formatnya INV-<orderID>-<timestamp>
	orderID := parseMerchantOrderID(notif.OrderID)
	if orderID == 0 {
		return fmt.Errorf("merchant order id tidak bisa diparse: %s", notif.OrderID)
	}

	status := models.TxStatusFailed
	if success {
		status = models.TxStatusSuccess
	}
	fields := repository.ResolveFields{
		Status:               status,
		Success:              success,
		GatewayTransactionID: notif.TransactionID,
		RawPayload:           datatypes.JSON(rawBody),
	}

	// Transaksi yang sama kayak webhook gateway utama: ledger + order bareng
	return r.tx.Transact(ctx, func(ctx context.Context) error {
		return r.applyDirect(ctx, models.KindDirect, strconv.FormatUint(orderID, 10), fields)
	})
}

func (r *Reconciler) notifyUser(userID uint64, title, body string, data map[string]string) {
	if r.push == nil || userID == 0 {
		return
	}

	// Ambil token di sini juga biar response webhook gak nunggu query + FCM.
	// Push bisa kekirim walau transaksi webhook ujungnya batal — notifikasi
	// sifatnya best-effort, bukan bagian dari state.
	go func() {
		user, err := r.users.GetByID(context.Background(), userID)
		if err != nil || user.FCMToken == "" {
			return
		}
		if err := r.push(user.FCMToken, title, body, data); err != nil {
			r.log.Warnw("gagal kirim push notif", "user_id", userID, "error", err)
		}
	}()
}

func parseOrderRef(ref string) uint64 {
	return utils.StringToUint64(strings.TrimSpace(ref))
}

// parseMerchantOrderID ambil order id internal dari format INV-<orderID>-<ts>
func parseMerchantOrderID(merchantOrderID string) uint64 {
	parts := strings.Split(merchantOrderID, "-")
	if len(parts) < 2 || parts[0] != "INV" {
		return 0
	}
	return parseOrderRef(parts[1])
}
