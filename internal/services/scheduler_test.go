package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"billing-backend/internal/models"
	"billing-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type schedulerEnv struct {
	orders  *mockOrderRepo
	users   *mockUserRepo
	plans   *mockPlanRepo
	creds   *mockCredentialRepo
	charger *mockCharger

	scheduler *services.Scheduler
}

func newSchedulerEnv() *schedulerEnv {
	env := &schedulerEnv{
		orders:  newMockOrderRepo(),
		users:   newMockUserRepo(),
		plans:   newMockPlanRepo(),
		creds:   newMockCredentialRepo(),
		charger: &mockCharger{},
	}
	env.scheduler = services.NewScheduler(
		env.plans, env.orders, env.users, env.creds, env.charger,
		"IDR", "integration-off-session", zap.NewNop().Sugar(),
	)
	return env
}

// seedPlan masang order + user + token kartu lengkap, siap ditagih.
func (env *schedulerEnv) seedPlan(planID, orderID uint64, nextDue *time.Time) *models.InstallmentPlan {
	gwOrderID := "gwo-seed"
	env.orders.orders[orderID] = &models.Order{ID: orderID, UserID: 7, TotalAmount: 900, Status: models.OrderStatusPending, GatewayOrderID: &gwOrderID}
	env.users.users[7] = &models.User{ID: 7, FullName: "Budi Santoso", Email: "budi@mail.com", Phone: "0812345"}
	env.creds.creds[gwOrderID] = &models.SavedCredential{GatewayOrderID: gwOrderID, Token: "card-token-7"}

	plan := &models.InstallmentPlan{
		ID: planID, OrderID: orderID,
		InstallmentCount: 3, InstallmentsPaid: 1, InstallmentAmount: 300,
		Status: models.PlanStatusOngoing, NextDueDate: nextDue,
	}
	env.plans.plans[planID] = plan
	return plan
}

// Cuma plan yang jadwalnya lewat/hari ini yang ditagih; yang besok dibiarkan.
func TestScheduler_SweepChargesOnlyDuePlans(t *testing.T) {
	env := newSchedulerEnv()
	past := time.Now().Add(-48 * time.Hour)
	today := time.Now().Add(-time.Minute)
	future := time.Now().Add(24 * time.Hour)

	env.seedPlan(1, 100, &past)
	env.seedPlan(2, 200, &today)
	env.seedPlan(3, 300, &future)

	env.scheduler.Sweep(context.Background())

	assert.Len(t, env.charger.intentions, 2)
	assert.Len(t, env.charger.tokenCharges, 2)
	// Plan yang ketembak dapet penanda in-flight, yang belum due tetep bersih
	assert.NotNil(t, env.plans.plans[1].ChargeFiredAt)
	assert.NotNil(t, env.plans.plans[2].ChargeFiredAt)
	assert.Nil(t, env.plans.plans[3].ChargeFiredAt)
}

// Nominal yang ditagih = InstallmentAmount plan, pakai kredensial off-session,
// metadata-nya EMI (kunci dispatch pas webhook-nya balik).
func TestScheduler_ChargeUsesPlanAmountAndOffSessionID(t *testing.T) {
	env := newSchedulerEnv()
	due := time.Now().Add(-time.Hour)
	env.seedPlan(1, 100, &due)

	env.scheduler.Sweep(context.Background())

	assert.Len(t, env.charger.intentions, 1)
	req := env.charger.intentions[0]
	assert.Equal(t, int64(300), req.Amount)
	assert.Equal(t, "IDR", req.Currency)
	assert.Equal(t, "integration-off-session", req.IntegrationID)
	assert.Equal(t, models.KindEMI, req.Metadata.PaymentType)
	assert.Equal(t, "100", req.Metadata.OrderID)
	assert.Equal(t, "Budi Santoso", req.Billing.FirstName)

	// Charge token pakai token kartu tersimpan + payment token dari intention
	assert.Equal(t, [2]string{"card-token-7", "ptoken-1"}, env.charger.tokenCharges[0])
}

// Token kartu belum ada (cicilan pertama belum kelar): skip tanpa error,
// plan gak disentuh, gak ada charge yang ketembak.
func TestScheduler_MissingCredentialSkips(t *testing.T) {
	env := newSchedulerEnv()
	due := time.Now().Add(-time.Hour)
	env.seedPlan(1, 100, &due)
	delete(env.creds.creds, "gwo-seed")

	env.scheduler.Sweep(context.Background())

	assert.Empty(t, env.charger.intentions)
	assert.Nil(t, env.plans.plans[1].ChargeFiredAt)
	assert.Equal(t, 1, env.plans.plans[1].InstallmentsPaid)
}

// Order plan-nya hilang: log + skip, bukan error yang ngegagalin sweep.
func TestScheduler_MissingOrderSkips(t *testing.T) {
	env := newSchedulerEnv()
	due := time.Now().Add(-time.Hour)
	plan := env.seedPlan(1, 100, &due)
	delete(env.orders.orders, 100)

	err := env.scheduler.ChargeDuePlan(context.Background(), *plan)

	assert.NoError(t, err)
	assert.Empty(t, env.charger.intentions)
}

// Gateway error pas nagih: penanda in-flight dilepas lagi, jadwal TIDAK maju —
// plan masih jatuh tempo buat tick berikutnya.
func TestScheduler_ChargeErrorLeavesPlanDue(t *testing.T) {
	env := newSchedulerEnv()
	due := time.Now().Add(-time.Hour)
	plan := env.seedPlan(1, 100, &due)
	env.charger.chargeErr = errors.New("gateway timeout")

	err := env.scheduler.ChargeDuePlan(context.Background(), *plan)

	assert.Error(t, err)
	assert.Nil(t, env.plans.plans[1].ChargeFiredAt)
	assert.WithinDuration(t, due, *env.plans.plans[1].NextDueDate, time.Second)

	// Masih kelisting due di sweep berikutnya
	now := time.Now()
	duePlans, findErr := env.plans.FindDue(context.Background(), now, now.Add(-15*time.Minute))
	assert.NoError(t, findErr)
	assert.Len(t, duePlans, 1)
}

// Plan yang charge-nya masih in-flight (nunggu webhook) gak ditagih lagi.
func TestScheduler_InflightPlanSkipped(t *testing.T) {
	env := newSchedulerEnv()
	due := time.Now().Add(-time.Hour)
	env.seedPlan(1, 100, &due)

	env.scheduler.Sweep(context.Background())
	assert.Len(t, env.charger.intentions, 1)

	// Sweep kedua sebelum webhook datang: jangan dobel nagih
	env.scheduler.Sweep(context.Background())
	assert.Len(t, env.charger.intentions, 1)
}

// Trigger manual pas charge sebelumnya masih nunggu webhook: ditolak,
// jangan sampai satu cicilan ketagih dua kali.
func TestScheduler_ChargeByOrderRejectsInflight(t *testing.T) {
	env := newSchedulerEnv()
	due := time.Now().Add(-time.Hour)
	env.seedPlan(1, 100, &due)

	env.scheduler.Sweep(context.Background())
	assert.Len(t, env.charger.intentions, 1)

	err := env.scheduler.ChargeByOrder(context.Background(), services.ChargeInput{OrderID: 100})

	assert.Error(t, err)
	assert.Len(t, env.charger.intentions, 1)
}

// Trigger manual nolak plan yang udah COMPLETED.
func TestScheduler_ChargeByOrderRejectsCompleted(t *testing.T) {
	env := newSchedulerEnv()
	due := time.Now().Add(-time.Hour)
	plan := env.seedPlan(1, 100, &due)
	plan.Status = models.PlanStatusCompleted

	err := env.scheduler.ChargeByOrder(context.Background(), services.ChargeInput{OrderID: 100})

	assert.Error(t, err)
	assert.Empty(t, env.charger.intentions)
}
