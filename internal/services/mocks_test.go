package services_test

import (
	"context"
	"fmt"
	"time"

	"billing-backend/internal/gateway"
	"billing-backend/internal/models"
	"billing-backend/internal/repository"
)

// --- Mock Repositories (in-memory, biar test gak butuh MySQL) ---

type mockOrderRepo struct {
	orders map[uint64]*models.Order

	// Error sekali-pakai buat simulasi gagal di tengah branch
	updateStatusErr error
	updateDueErr    error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uint64]*models.Order)}
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uint64) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uint64, status string, gatewayOrderID *string) error {
	if m.updateStatusErr != nil {
		err := m.updateStatusErr
		m.updateStatusErr = nil
		return err
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = status
	if gatewayOrderID != nil {
		o.GatewayOrderID = gatewayOrderID
	}
	return nil
}

func (m *mockOrderRepo) UpdateDueAmount(_ context.Context, id uint64, amount int64) error {
	if m.updateDueErr != nil {
		err := m.updateDueErr
		m.updateDueErr = nil
		return err
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.DueAmount = &amount
	return nil
}

type mockUserRepo struct {
	users map[uint64]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uint64]*models.User)}
}

func (m *mockUserRepo) GetByID(_ context.Context, id uint64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type mockTransactionRepo struct {
	seq  uint64
	trxs []*models.Transaction
}

func newMockTransactionRepo() *mockTransactionRepo {
	return &mockTransactionRepo{}
}

func (m *mockTransactionRepo) FindAuthoritative(_ context.Context, kind string, orderID uint64) (*models.Transaction, error) {
	// Baris paling baru dulu, sama kayak ORDER BY created_at DESC
	for i := len(m.trxs) - 1; i >= 0; i-- {
		t := m.trxs[i]
		if t.Kind == kind && t.OrderID != nil && *t.OrderID == orderID {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockTransactionRepo) FindByReference(_ context.Context, kind, gatewayTransactionID string) (*models.Transaction, error) {
	if gatewayTransactionID == "" {
		return nil, repository.ErrNotFound
	}
	for _, t := range m.trxs {
		if t.Kind == kind && t.GatewayTransactionID == gatewayTransactionID {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockTransactionRepo) Create(_ context.Context, trx *models.Transaction) error {
	m.seq++
	trx.ID = m.seq
	trx.CreatedAt = time.Now()
	m.trxs = append(m.trxs, trx)
	return nil
}

func (m *mockTransactionRepo) Resolve(_ context.Context, id uint64, fields repository.ResolveFields) (bool, error) {
	for _, t := range m.trxs {
		if t.ID != id {
			continue
		}
		if t.Status != models.TxStatusPending {
			return false, nil // Conditional update gak kena baris
		}
		t.Status = fields.Status
		t.Success = fields.Success
		t.GatewayTransactionID = fields.GatewayTransactionID
		t.GatewayOrderID = fields.GatewayOrderID
		t.RawPayload = fields.RawPayload
		return true, nil
	}
	return false, nil
}

func (m *mockTransactionRepo) ListByUser(_ context.Context, userID uint64, page, limit int) ([]models.Transaction, int64, error) {
	var all []models.Transaction
	for i := len(m.trxs) - 1; i >= 0; i-- {
		if m.trxs[i].UserID == userID {
			all = append(all, *m.trxs[i])
		}
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start > len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// byKind ngitung baris per kind+status, buat assert idempotensi
func (m *mockTransactionRepo) countByKindStatus(kind, status string) int {
	n := 0
	for _, t := range m.trxs {
		if t.Kind == kind && t.Status == status {
			n++
		}
	}
	return n
}

type mockPlanRepo struct {
	plans map[uint64]*models.InstallmentPlan // key: plan ID

	advanceErr error // Sekali-pakai
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: make(map[uint64]*models.InstallmentPlan)}
}

func (m *mockPlanRepo) FindDue(_ context.Context, now time.Time, inflightBefore time.Time) ([]models.InstallmentPlan, error) {
	var due []models.InstallmentPlan
	for _, p := range m.plans {
		if p.Status != models.PlanStatusOngoing {
			continue
		}
		if p.InstallmentsPaid >= p.InstallmentCount {
			continue
		}
		if p.NextDueDate == nil || p.NextDueDate.After(now) {
			continue
		}
		if p.ChargeFiredAt != nil && !p.ChargeFiredAt.Before(inflightBefore) {
			continue
		}
		due = append(due, *p)
	}
	return due, nil
}

func (m *mockPlanRepo) FindByOrderID(_ context.Context, orderID uint64) (*models.InstallmentPlan, error) {
	for _, p := range m.plans {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockPlanRepo) Advance(_ context.Context, planID uint64, status string, nextDueDate *time.Time) error {
	if m.advanceErr != nil {
		err := m.advanceErr
		m.advanceErr = nil
		return err
	}
	p, ok := m.plans[planID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.InstallmentsPaid >= p.InstallmentCount {
		return nil // Guard "paid < count" di query
	}
	p.InstallmentsPaid++
	p.Status = status
	p.NextDueDate = nextDueDate
	p.ChargeFiredAt = nil
	return nil
}

func (m *mockPlanRepo) Reschedule(_ context.Context, planID uint64, nextDueDate time.Time) error {
	p, ok := m.plans[planID]
	if !ok {
		return repository.ErrNotFound
	}
	p.NextDueDate = &nextDueDate
	p.ChargeFiredAt = nil
	return nil
}

func (m *mockPlanRepo) MarkChargeFired(_ context.Context, planID uint64, at time.Time) error {
	p, ok := m.plans[planID]
	if !ok {
		return repository.ErrNotFound
	}
	p.ChargeFiredAt = &at
	return nil
}

func (m *mockPlanRepo) ClearChargeFired(_ context.Context, planID uint64) error {
	p, ok := m.plans[planID]
	if !ok {
		return repository.ErrNotFound
	}
	p.ChargeFiredAt = nil
	return nil
}

type mockCredentialRepo struct {
	creds map[string]*models.SavedCredential
}

func newMockCredentialRepo() *mockCredentialRepo {
	return &mockCredentialRepo{creds: make(map[string]*models.SavedCredential)}
}

func (m *mockCredentialRepo) Save(_ context.Context, cred *models.SavedCredential) error {
	if _, exists := m.creds[cred.GatewayOrderID]; exists {
		return nil // DoNothing, token immutable
	}
	m.creds[cred.GatewayOrderID] = cred
	return nil
}

func (m *mockCredentialRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.SavedCredential, error) {
	c, ok := m.creds[gatewayOrderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

type mockWalletRepo struct {
	wallets map[uint64]*models.Wallet // key: user ID
	entries []models.WalletLedgerEntry

	creditErr error // Sekali-pakai
}

func newMockWalletRepo() *mockWalletRepo {
	return &mockWalletRepo{wallets: make(map[uint64]*models.Wallet)}
}

func (m *mockWalletRepo) GetByUserID(_ context.Context, userID uint64) (*models.Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok {
		w = &models.Wallet{ID: userID, UserID: userID}
		m.wallets[userID] = w
	}
	return w, nil
}

func (m *mockWalletRepo) Credit(_ context.Context, userID uint64, amount int64, referenceID string) (*models.WalletLedgerEntry, error) {
	if m.creditErr != nil {
		err := m.creditErr
		m.creditErr = nil
		return nil, err
	}
	for i := range m.entries {
		if m.entries[i].ReferenceID == referenceID {
			return &m.entries[i], nil // Replay, saldo jangan disentuh
		}
	}

	w, ok := m.wallets[userID]
	if !ok {
		w = &models.Wallet{ID: userID, UserID: userID}
		m.wallets[userID] = w
	}

	entry := models.WalletLedgerEntry{
		ID:            uint64(len(m.entries) + 1),
		WalletID:      w.ID,
		Amount:        amount,
		BalanceBefore: w.Balance,
		BalanceAfter:  w.Balance + amount,
		ReferenceID:   referenceID,
	}
	w.Balance = entry.BalanceAfter
	m.entries = append(m.entries, entry)
	return &entry, nil
}

// --- Mock TxManager ---

// mockTxManager niru semantik rollback DB: state semua repo di-snapshot
// sebelum fn jalan, dan dibalikin kalau fn error. Tanpa ini, test gagal-di-
// tengah bakal ninggalin baris ledger "setengah jadi" yang di DB beneran
// gak akan pernah ada.
type mockTxManager struct {
	orders  *mockOrderRepo
	trxs    *mockTransactionRepo
	plans   *mockPlanRepo
	wallets *mockWalletRepo
}

type txSnapshot struct {
	orders  map[uint64]models.Order
	seq     uint64
	trxs    []models.Transaction
	plans   map[uint64]models.InstallmentPlan
	wallets map[uint64]models.Wallet
	entries []models.WalletLedgerEntry
}

func (m *mockTxManager) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *mockTxManager) snapshot() txSnapshot {
	snap := txSnapshot{
		orders:  make(map[uint64]models.Order, len(m.orders.orders)),
		seq:     m.trxs.seq,
		trxs:    make([]models.Transaction, len(m.trxs.trxs)),
		plans:   make(map[uint64]models.InstallmentPlan, len(m.plans.plans)),
		wallets: make(map[uint64]models.Wallet, len(m.wallets.wallets)),
		entries: append([]models.WalletLedgerEntry(nil), m.wallets.entries...),
	}
	for id, o := range m.orders.orders {
		snap.orders[id] = *o
	}
	for i, t := range m.trxs.trxs {
		snap.trxs[i] = *t
	}
	for id, p := range m.plans.plans {
		snap.plans[id] = *p
	}
	for id, w := range m.wallets.wallets {
		snap.wallets[id] = *w
	}
	return snap
}

// restore nulis balik NILAI ke pointer yang sudah ada, bukan ganti pointer —
// test banyak yang megang pointer langsung ke order/plan-nya.
func (m *mockTxManager) restore(snap txSnapshot) {
	for id := range m.orders.orders {
		if _, ok := snap.orders[id]; !ok {
			delete(m.orders.orders, id)
		}
	}
	for id, val := range snap.orders {
		if ptr, ok := m.orders.orders[id]; ok {
			*ptr = val
		} else {
			v := val
			m.orders.orders[id] = &v
		}
	}

	m.trxs.seq = snap.seq
	for i := range snap.trxs {
		*m.trxs.trxs[i] = snap.trxs[i]
	}
	m.trxs.trxs = m.trxs.trxs[:len(snap.trxs)]

	for id := range m.plans.plans {
		if _, ok := snap.plans[id]; !ok {
			delete(m.plans.plans, id)
		}
	}
	for id, val := range snap.plans {
		if ptr, ok := m.plans.plans[id]; ok {
			*ptr = val
		} else {
			v := val
			m.plans.plans[id] = &v
		}
	}

	for id := range m.wallets.wallets {
		if _, ok := snap.wallets[id]; !ok {
			delete(m.wallets.wallets, id)
		}
	}
	for id, val := range snap.wallets {
		if ptr, ok := m.wallets.wallets[id]; ok {
			*ptr = val
		} else {
			v := val
			m.wallets.wallets[id] = &v
		}
	}
	m.wallets.entries = snap.entries
}

// --- Mock Gateway Charger ---

type mockCharger struct {
	intentions   []gateway.IntentionRequest
	tokenCharges [][2]string // [credential token, payment token]

	intentionErr error
	chargeErr    error
}

func (m *mockCharger) CreateIntention(_ context.Context, req gateway.IntentionRequest) (*gateway.IntentionResponse, error) {
	if m.intentionErr != nil {
		return nil, m.intentionErr
	}
	m.intentions = append(m.intentions, req)
	return &gateway.IntentionResponse{
		PaymentToken:   fmt.Sprintf("ptoken-%d", len(m.intentions)),
		GatewayOrderID: fmt.Sprintf("gwo-%d", len(m.intentions)),
	}, nil
}

func (m *mockCharger) ChargeWithToken(_ context.Context, credentialToken, paymentToken string) (*gateway.ChargeResult, error) {
	if m.chargeErr != nil {
		return nil, m.chargeErr
	}
	m.tokenCharges = append(m.tokenCharges, [2]string{credentialToken, paymentToken})
	return &gateway.ChargeResult{
		Success:              true,
		GatewayTransactionID: fmt.Sprintf("gwt-%d", len(m.tokenCharges)),
	}, nil
}
