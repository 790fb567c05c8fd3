package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"billing-backend/internal/gateway"
	"billing-backend/internal/models"
	"billing-backend/internal/repository"

	"go.uber.org/zap"
)

// ChargeInput = input penagihan satu plan. Dipakai SAMA PERSIS oleh sweep
// terjadwal dan endpoint trigger manual, biar gak ada lagi fungsi dobel
// yang kadang terima request kadang terima id polosan.
type ChargeInput struct {
	OrderID uint64 `json:"order_id" binding:"required"`
}

// Scheduler nagih cicilan yang jatuh tempo pakai token kartu tersimpan.
// Dia CUMA nembak charge; perubahan state plan digerakkan webhook lewat
// reconciler, bukan di sini.
type Scheduler struct {
	plans   repository.PlanRepository
	orders  repository.OrderRepository
	users   repository.UserRepository
	creds   repository.CredentialRepository
	charger gateway.Charger

	currency                string
	offSessionIntegrationID string

	interval    time.Duration
	inflightTTL time.Duration
	log         *zap.SugaredLogger
}

func NewScheduler(
	plans repository.PlanRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	creds repository.CredentialRepository,
	charger gateway.Charger,
	currency string,
	offSessionIntegrationID string,
	log *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		plans:                   plans,
		orders:                  orders,
		users:                   users,
		creds:                   creds,
		charger:                 charger,
		currency:                currency,
		offSessionIntegrationID: offSessionIntegrationID,
		interval:                5 * time.Minute,
		inflightTTL:             15 * time.Minute,
		log:                     log,
	}
}

// Run jalan terus sampai context dibatalkan. Panggil pakai goroutine dari main.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Infow("scheduler cicilan jalan", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler cicilan berhenti")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep satu putaran: ambil semua plan jatuh tempo, tagih satu-satu.
// Satu plan gagal gak boleh ngegagalin plan lain.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := time.Now()
	duePlans, err := s.plans.FindDue(ctx, now, now.Add(-s.inflightTTL))
	if err != nil {
		s.log.Errorw("gagal ambil plan jatuh tempo", "error", err)
		return
	}

	for _, plan := range duePlans {
		if err := s.ChargeDuePlan(ctx, plan); err != nil {
			// Plan TETAP due, bakal dicoba lagi tick berikutnya.
			// Jadwal cuma boleh maju kalau gateway sendiri yang bilang FAILED
			// (lewat webhook), bukan gara-gara network error di sini.
			s.log.Warnw("penagihan cicilan gagal, plan tetap jatuh tempo",
				"plan_id", plan.ID, "order_id", plan.OrderID, "error", err)
		}
	}
}

// ChargeByOrder buat trigger manual (endpoint admin / testing).
func (s *Scheduler) ChargeByOrder(ctx context.Context, in ChargeInput) error {
	plan, err := s.plans.FindByOrderID(ctx, in.OrderID)
	if err != nil {
		return err
	}
	if plan.Status != models.PlanStatusOngoing {
		return fmt.Errorf("plan order %d sudah %s", in.OrderID, plan.Status)
	}
	// Hormati penanda in-flight sama kayak sweep — trigger manual pas charge
	// sebelumnya masih nunggu webhook = dobel nagih
	if plan.ChargeFiredAt != nil && time.Since(*plan.ChargeFiredAt) < s.inflightTTL {
		return fmt.Errorf("plan order %d sedang ditagih, tunggu webhook-nya dulu", in.OrderID)
	}
	return s.ChargeDuePlan(ctx, *plan)
}

// ChargeDuePlan nembak satu charge off-session untuk satu plan.
// Data kurang (order/token belum ada) = skip tick ini, bukan error fatal.
func (s *Scheduler) ChargeDuePlan(ctx context.Context, plan models.InstallmentPlan) error {
	order, err := s.orders.GetByID(ctx, plan.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("order plan tidak ketemu, skip", "plan_id", plan.ID, "order_id", plan.OrderID)
			return nil
		}
		return err
	}
	if order.GatewayOrderID == nil || *order.GatewayOrderID == "" {
		// Cicilan pertama belum sukses, belum ada gateway order id
		s.log.Warnw("gateway order id kosong, skip", "plan_id", plan.ID)
		return nil
	}

	cred, err := s.creds.FindByGatewayOrderID(ctx, *order.GatewayOrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("token kartu belum tersimpan, skip", "plan_id", plan.ID, "gateway_order_id", *order.GatewayOrderID)
			return nil
		}
		return err
	}

	user, err := s.users.GetByID(ctx, order.UserID)
	if err != nil {
		return err
	}

	// Tandai in-flight SEBELUM nembak, biar tick berikutnya gak dobel nagih
	// selama webhook belum datang
	if err := s.plans.MarkChargeFired(ctx, plan.ID, time.Now()); err != nil {
		return err
	}

	intention, err := s.charger.CreateIntention(ctx, gateway.IntentionRequest{
		Amount:          plan.InstallmentAmount, // Nominal dari plan-nya sendiri
		Currency:        s.currency,
		IntegrationID:   s.offSessionIntegrationID, // Kredensial khusus charge tanpa user hadir
		MerchantOrderID: fmt.Sprintf("INV-%d-%d", plan.OrderID, time.Now().Unix()),
		Billing: gateway.BillingInfo{
			FirstName: user.FullName,
			Email:     user.Email,
			Phone:     user.Phone,
		},
		Metadata: gateway.Metadata{
			OrderID:     strconv.FormatUint(plan.OrderID, 10),
			PaymentType: models.KindEMI,
			UserID:      strconv.FormatUint(user.ID, 10),
		},
	})
	if err != nil {
		// Gagal sebelum charge kejadian: lepas penanda biar tick berikutnya retry
		if clearErr := s.plans.ClearChargeFired(ctx, plan.ID); clearErr != nil {
			s.log.Errorw("gagal lepas penanda in-flight", "plan_id", plan.ID, "error", clearErr)
		}
		return err
	}

	if _, err := s.charger.ChargeWithToken(ctx, cred.Token, intention.PaymentToken); err != nil {
		if clearErr := s.plans.ClearChargeFired(ctx, plan.ID); clearErr != nil {
			s.log.Errorw("gagal lepas penanda in-flight", "plan_id", plan.ID, "error", clearErr)
		}
		return err
	}

	s.log.Infow("charge cicilan ditembak, nunggu webhook",
		"plan_id", plan.ID, "order_id", plan.OrderID, "amount", plan.InstallmentAmount)
	return nil
}
