package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/adilbekov/handcarry-orders/internal/model"
	"github.com/adilbekov/handcarry-orders/internal/service"
)

type orderFixture struct {
	tasks  *fakeTaskRepo
	orders *fakeOrderRepo
	svc    *service.OrderService
	sender uuid.UUID
	task   model.Task
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	tasks := newFakeTaskRepo()
	orders := newFakeOrderRepo(tasks)
	svc := service.NewOrderService(orders, tasks, fakeLedger{}, testConfig())

	sender := uuid.New()
	task := tasks.put(model.Task{
		SenderID: sender,
		Title:    "Documents to Almaty",
		Status:   model.TaskStatusActive,
		Reward:   1000,
	})
	return &orderFixture{tasks: tasks, orders: orders, svc: svc, sender: sender, task: task}
}

func TestRespondComputesFee(t *testing.T) {
	cases := []struct {
		reward int64
		fee    int64
	}{
		{1000, 150},
		{999, 150},  // 149.85 rounds up
		{3, 0},      // 0.45 rounds down
		{10, 2},     // 1.5 rounds half away from zero
		{100, 15},
		{1, 0},
	}

	for _, tc := range cases {
		fx := newOrderFixture(t)
		task := fx.tasks.put(model.Task{
			SenderID: fx.sender,
			Status:   model.TaskStatusActive,
			Reward:   tc.reward,
		})

		order, err := fx.svc.Respond(context.Background(), task.ID, uuid.New(), "ready to carry")
		require.NoError(t, err)
		require.Equal(t, tc.fee, order.PlatformFee, "reward %d", tc.reward)
		require.Equal(t, tc.reward+tc.fee, order.TotalAmount)
		require.Equal(t, model.OrderStatusPending, order.Status)
		require.Equal(t, fx.sender, order.SenderID)
	}
}

func TestRespondSelfResponse(t *testing.T) {
	fx := newOrderFixture(t)
	_, err := fx.svc.Respond(context.Background(), fx.task.ID, fx.sender, "")
	require.ErrorIs(t, err, service.ErrSelfResponse)
}

func TestRespondDuplicate(t *testing.T) {
	fx := newOrderFixture(t)
	carrier := uuid.New()

	_, err := fx.svc.Respond(context.Background(), fx.task.ID, carrier, "first")
	require.NoError(t, err)

	_, err = fx.svc.Respond(context.Background(), fx.task.ID, carrier, "second")
	require.ErrorIs(t, err, service.ErrDuplicateResponse)
}

func TestRespondInactiveTask(t *testing.T) {
	fx := newOrderFixture(t)
	pending := fx.tasks.put(model.Task{
		SenderID: fx.sender,
		Status:   model.TaskStatusPendingModeration,
		Reward:   500,
	})

	_, err := fx.svc.Respond(context.Background(), pending.ID, uuid.New(), "")
	require.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestRespondTaskNotFound(t *testing.T) {
	fx := newOrderFixture(t)
	_, err := fx.svc.Respond(context.Background(), uuid.New(), uuid.New(), "")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestRequestTransitionTable(t *testing.T) {
	carrier := uuid.New()

	cases := []struct {
		name    string
		from    model.OrderStatus
		to      model.OrderStatus
		asCarrier bool
		wantErr error
	}{
		{"pending to selected", model.OrderStatusPending, model.OrderStatusCarrierSelected, false, nil},
		{"pending to cancelled", model.OrderStatusPending, model.OrderStatusCancelled, false, nil},
		{"pending to delivered", model.OrderStatusPending, model.OrderStatusDelivered, true, service.ErrInvalidTransition},
		{"paid to received by carrier", model.OrderStatusPaid, model.OrderStatusPackageReceived, true, nil},
		{"paid to received by sender", model.OrderStatusPaid, model.OrderStatusPackageReceived, false, service.ErrForbidden},
		{"transit to delivered by carrier", model.OrderStatusInTransit, model.OrderStatusDelivered, true, nil},
		{"transit to delivered by sender", model.OrderStatusInTransit, model.OrderStatusDelivered, false, service.ErrForbidden},
		{"delivered to completed", model.OrderStatusDelivered, model.OrderStatusCompleted, false, nil},
		{"completed is terminal", model.OrderStatusCompleted, model.OrderStatusCancelled, false, service.ErrInvalidTransition},
		{"cancelled is terminal", model.OrderStatusCancelled, model.OrderStatusPending, false, service.ErrInvalidTransition},
		{"paid back to pending", model.OrderStatusPaid, model.OrderStatusPending, false, service.ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newOrderFixture(t)
			order, err := fx.orders.Create(context.Background(), model.Order{
				TaskID:    fx.task.ID,
				SenderID:  fx.sender,
				CarrierID: carrier,
				Status:    tc.from,
			})
			require.NoError(t, err)

			actor := fx.sender
			if tc.asCarrier {
				actor = carrier
			}

			updated, err := fx.svc.RequestTransition(context.Background(), order.ID, tc.to, actor)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.to, updated.Status)
		})
	}
}

func TestRequestTransitionStranger(t *testing.T) {
	fx := newOrderFixture(t)
	order, err := fx.orders.Create(context.Background(), model.Order{
		TaskID:    fx.task.ID,
		SenderID:  fx.sender,
		CarrierID: uuid.New(),
		Status:    model.OrderStatusPending,
	})
	require.NoError(t, err)

	_, err = fx.svc.RequestTransition(context.Background(), order.ID, model.OrderStatusCancelled, uuid.New())
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestSelectCarrier(t *testing.T) {
	fx := newOrderFixture(t)
	carrierA := uuid.New()
	carrierB := uuid.New()

	orderA, err := fx.svc.Respond(context.Background(), fx.task.ID, carrierA, "a")
	require.NoError(t, err)
	orderB, err := fx.svc.Respond(context.Background(), fx.task.ID, carrierB, "b")
	require.NoError(t, err)

	selected, err := fx.svc.SelectCarrier(context.Background(), fx.task.ID, orderA.ID, fx.sender)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCarrierSelected, selected.Status)

	sibling, err := fx.orders.GetByID(context.Background(), orderB.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCancelled, sibling.Status)

	task, err := fx.tasks.GetByID(context.Background(), fx.task.ID)
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusInProgress, task.Status)
}

func TestSelectCarrierWrongSender(t *testing.T) {
	fx := newOrderFixture(t)
	order, err := fx.svc.Respond(context.Background(), fx.task.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = fx.svc.SelectCarrier(context.Background(), fx.task.ID, order.ID, uuid.New())
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestSelectCarrierForeignOrder(t *testing.T) {
	fx := newOrderFixture(t)
	otherTask := fx.tasks.put(model.Task{
		SenderID: fx.sender,
		Status:   model.TaskStatusActive,
		Reward:   500,
	})
	order, err := fx.svc.Respond(context.Background(), otherTask.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = fx.svc.SelectCarrier(context.Background(), fx.task.ID, order.ID, fx.sender)
	require.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestSelectCarrierNotPending(t *testing.T) {
	fx := newOrderFixture(t)
	order, err := fx.svc.Respond(context.Background(), fx.task.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = fx.svc.SelectCarrier(context.Background(), fx.task.ID, order.ID, fx.sender)
	require.NoError(t, err)

	// Second selection of the already promoted order.
	_, err = fx.svc.SelectCarrier(context.Background(), fx.task.ID, order.ID, fx.sender)
	require.ErrorIs(t, err, service.ErrInvalidTransition)
}

// Two concurrent selections for the same task must resolve to exactly one
// winner; the loser observes an already-decided task.
func TestSelectCarrierConcurrent(t *testing.T) {
	for i := 0; i < 50; i++ {
		fx := newOrderFixture(t)
		orderA, err := fx.svc.Respond(context.Background(), fx.task.ID, uuid.New(), "a")
		require.NoError(t, err)
		orderB, err := fx.svc.Respond(context.Background(), fx.task.ID, uuid.New(), "b")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = fx.svc.SelectCarrier(context.Background(), fx.task.ID, orderA.ID, fx.sender)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = fx.svc.SelectCarrier(context.Background(), fx.task.ID, orderB.ID, fx.sender)
		}()
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		require.Equal(t, 1, succeeded, "exactly one selection must win")

		selected := 0
		for _, id := range []uuid.UUID{orderA.ID, orderB.ID} {
			order, err := fx.orders.GetByID(context.Background(), id)
			require.NoError(t, err)
			if order.Status == model.OrderStatusCarrierSelected {
				selected++
			} else {
				require.Equal(t, model.OrderStatusCancelled, order.Status)
			}
		}
		require.Equal(t, 1, selected)
	}
}

func TestOpenDispute(t *testing.T) {
	fx := newOrderFixture(t)
	carrier := uuid.New()
	order, err := fx.orders.Create(context.Background(), model.Order{
		TaskID:    fx.task.ID,
		SenderID:  fx.sender,
		CarrierID: carrier,
		Status:    model.OrderStatusInTransit,
	})
	require.NoError(t, err)

	disputed, err := fx.svc.OpenDispute(context.Background(), order.ID, model.Principal{UserID: carrier, Role: model.RoleUser})
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusDispute, disputed.Status)
}

func TestOpenDisputeTerminal(t *testing.T) {
	for _, status := range []model.OrderStatus{
		model.OrderStatusCompleted,
		model.OrderStatusCancelled,
		model.OrderStatusDispute,
	} {
		fx := newOrderFixture(t)
		order, err := fx.orders.Create(context.Background(), model.Order{
			TaskID:    fx.task.ID,
			SenderID:  fx.sender,
			CarrierID: uuid.New(),
			Status:    status,
		})
		require.NoError(t, err)

		_, err = fx.svc.OpenDispute(context.Background(), order.ID, model.Principal{UserID: fx.sender, Role: model.RoleUser})
		require.ErrorIs(t, err, service.ErrInvalidTransition, "status %s", status)
	}
}

func TestOpenDisputeStranger(t *testing.T) {
	fx := newOrderFixture(t)
	order, err := fx.orders.Create(context.Background(), model.Order{
		TaskID:    fx.task.ID,
		SenderID:  fx.sender,
		CarrierID: uuid.New(),
		Status:    model.OrderStatusPaid,
	})
	require.NoError(t, err)

	_, err = fx.svc.OpenDispute(context.Background(), order.ID, model.Principal{UserID: uuid.New(), Role: model.RoleUser})
	require.ErrorIs(t, err, service.ErrForbidden)

	// A moderator may flag any order.
	_, err = fx.svc.OpenDispute(context.Background(), order.ID, model.Principal{UserID: uuid.New(), Role: model.RoleModerator})
	require.NoError(t, err)
}

func TestResolveDispute(t *testing.T) {
	cases := []struct {
		name   string
		refund bool
		want   model.OrderStatus
	}{
		{"refund cancels", true, model.OrderStatusCancelled},
		{"no refund completes", false, model.OrderStatusCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newOrderFixture(t)
			order, err := fx.orders.Create(context.Background(), model.Order{
				TaskID:    fx.task.ID,
				SenderID:  fx.sender,
				CarrierID: uuid.New(),
				Status:    model.OrderStatusDispute,
			})
			require.NoError(t, err)

			resolved, err := fx.svc.ResolveDispute(context.Background(), order.ID, uuid.New(), tc.refund)
			require.NoError(t, err)
			require.Equal(t, tc.want, resolved.Status)
		})
	}
}

func TestResolveDisputeNotInDispute(t *testing.T) {
	fx := newOrderFixture(t)
	order, err := fx.orders.Create(context.Background(), model.Order{
		TaskID:    fx.task.ID,
		SenderID:  fx.sender,
		CarrierID: uuid.New(),
		Status:    model.OrderStatusDelivered,
	})
	require.NoError(t, err)

	_, err = fx.svc.ResolveDispute(context.Background(), order.ID, uuid.New(), true)
	require.ErrorIs(t, err, service.ErrNotInDispute)
}

func TestListByTaskAuthorization(t *testing.T) {
	fx := newOrderFixture(t)
	_, err := fx.svc.Respond(context.Background(), fx.task.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = fx.svc.ListByTask(context.Background(), fx.task.ID, model.Principal{UserID: uuid.New(), Role: model.RoleUser})
	require.ErrorIs(t, err, service.ErrForbidden)

	orders, err := fx.svc.ListByTask(context.Background(), fx.task.ID, model.Principal{UserID: fx.sender, Role: model.RoleUser})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	orders, err = fx.svc.ListByTask(context.Background(), fx.task.ID, model.Principal{UserID: uuid.New(), Role: model.RoleModerator})
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestExportLedger(t *testing.T) {
	fx := newOrderFixture(t)
	_, err := fx.svc.Respond(context.Background(), fx.task.ID, uuid.New(), "")
	require.NoError(t, err)

	result, err := fx.svc.ExportLedger(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "orders-ledger.xlsx", result.FileName)
	require.NotEmpty(t, result.Content)

	result, err = fx.svc.ExportLedger(context.Background(), "PENDING")
	require.NoError(t, err)
	require.Equal(t, "orders-ledger-PENDING.xlsx", result.FileName)

	_, err = fx.svc.ExportLedger(context.Background(), "NOT_A_STATUS")
	require.ErrorIs(t, err, service.ErrInvalidInput)
}
