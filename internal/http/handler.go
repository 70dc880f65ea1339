package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adilbekov/handcarry-orders/internal/http/middleware"
	"github.com/adilbekov/handcarry-orders/internal/model"
	"github.com/adilbekov/handcarry-orders/internal/service"
)

type Handler struct {
	tasks    *service.TaskService
	orders   *service.OrderService
	payments *service.PaymentService
	log      zerolog.Logger
}

func NewHandler(tasks *service.TaskService, orders *service.OrderService, payments *service.PaymentService, log zerolog.Logger) *Handler {
	return &Handler{tasks: tasks, orders: orders, payments: payments, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Provider callbacks carry no credentials. The provider path segment and
	// body are trusted as-is, matching provider documentation defaults; no
	// signature/HMAC verification is performed (known hardening gap).
	router.POST("/payments/webhook/:provider", h.paymentWebhook)

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/tasks", h.createTask)
	protected.GET("/tasks/:id", h.getTask)
	protected.GET("/tasks/:id/orders", h.listTaskOrders)

	protected.POST("/orders", h.createOrder)
	protected.GET("/orders/:id", h.getOrder)
	protected.PUT("/orders/:id/status", h.updateOrderStatus)
	protected.PUT("/orders/:id/select-carrier/:orderId", h.selectCarrier)
	protected.POST("/orders/:id/dispute", h.openDispute)

	protected.POST("/payments", h.createPayment)
	protected.GET("/payments/:id", h.getPayment)
	protected.PUT("/payments/:id/capture", h.capturePayment)
	protected.PUT("/payments/:id/refund", h.refundPayment)
	protected.GET("/payments/:id/receipt", h.paymentReceipt)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireModerator())
	admin.POST("/tasks/:id/moderate", h.moderateTask)
	admin.POST("/orders/:id/resolve-dispute", h.resolveDispute)
	admin.GET("/orders/export", h.exportOrders)
}

type createTaskRequest struct {
	Title          string `json:"title" binding:"required"`
	Description    string `json:"description"`
	Size           string `json:"size" binding:"required"`
	EstimatedValue int64  `json:"estimated_value"`
	FromAirport    string `json:"from_airport" binding:"required"`
	FromPoint      string `json:"from_point"`
	ToAirport      string `json:"to_airport" binding:"required"`
	ToPoint        string `json:"to_point"`
	DateFrom       string `json:"date_from" binding:"required"`
	DateTo         string `json:"date_to" binding:"required"`
	Reward         int64  `json:"reward" binding:"required"`
}

func (h *Handler) createTask(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dateFrom, err := parseDate(req.DateFrom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_from"})
		return
	}
	dateTo, err := parseDate(req.DateTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_to"})
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), principal.UserID, service.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Size:           req.Size,
		EstimatedValue: req.EstimatedValue,
		FromAirport:    req.FromAirport,
		FromPoint:      req.FromPoint,
		ToAirport:      req.ToAirport,
		ToPoint:        req.ToPoint,
		DateFrom:       dateFrom,
		DateTo:         dateTo,
		Reward:         req.Reward,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, taskResponse(task))
}

func (h *Handler) getTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, err := h.tasks.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskResponse(task))
}

func (h *Handler) listTaskOrders(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	orders, err := h.orders.ListByTask(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	responses := make([]gin.H, 0, len(orders))
	for i := range orders {
		responses = append(responses, orderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": responses})
}

type createOrderRequest struct {
	TaskID         string `json:"task_id" binding:"required"`
	CarrierMessage string `json:"carrier_message"`
}

func (h *Handler) createOrder(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id"})
		return
	}

	order, err := h.orders.Respond(c.Request.Context(), taskID, principal.UserID, req.CarrierMessage)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderResponse(order))
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, valid := model.ParseOrderStatus(req.Status)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	order, err := h.orders.RequestTransition(c.Request.Context(), id, target, principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

// selectCarrier promotes one response; :id is the task here, mirroring the
// route shape of the mobile client.
func (h *Handler) selectCarrier(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	order, err := h.orders.SelectCarrier(c.Request.Context(), taskID, orderID, principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

func (h *Handler) openDispute(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.OpenDispute(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

type createPaymentRequest struct {
	OrderID  string `json:"order_id" binding:"required"`
	Provider string `json:"provider" binding:"required"`
}

func (h *Handler) createPayment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order_id"})
		return
	}
	provider, valid := model.ParsePaymentProvider(req.Provider)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return
	}

	payment, err := h.payments.CreateHold(c.Request.Context(), orderID, provider, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, paymentResponse(payment))
}

func (h *Handler) getPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentResponse(payment))
}

func (h *Handler) capturePayment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	payment, err := h.payments.Capture(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentResponse(payment))
}

type refundPaymentRequest struct {
	Amount *int64 `json:"amount"`
}

func (h *Handler) refundPayment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req refundPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	payment, err := h.payments.Refund(c.Request.Context(), id, req.Amount, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentResponse(payment))
}

func (h *Handler) paymentReceipt(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.payments.Receipt(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

type yooKassaWebhook struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

type cloudPaymentsWebhook struct {
	TransactionID int64  `json:"TransactionId"`
	Status        string `json:"Status"`
	Model         struct {
		TransactionID int64  `json:"TransactionId"`
		Status        string `json:"Status"`
	} `json:"Model"`
}

// paymentWebhook always answers {"ok":true}: a non-2xx would only trigger
// provider retry storms. Internal failures are logged, never surfaced.
func (h *Handler) paymentWebhook(c *gin.Context) {
	provider, valid := model.ParsePaymentProvider(c.Param("provider"))
	if !valid {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	var event service.WebhookEvent
	switch provider {
	case model.ProviderYooKassa:
		var body yooKassaWebhook
		if err := c.ShouldBindJSON(&body); err != nil {
			h.log.Warn().Err(err).Msg("malformed yookassa webhook")
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		event = service.WebhookEvent{
			Provider:   provider,
			ProviderID: body.Object.ID,
			Event:      body.Event,
			Status:     body.Object.Status,
		}
	case model.ProviderCloudPayments:
		var body cloudPaymentsWebhook
		if err := c.ShouldBindJSON(&body); err != nil {
			h.log.Warn().Err(err).Msg("malformed cloudpayments webhook")
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		transactionID := body.TransactionID
		if transactionID == 0 {
			transactionID = body.Model.TransactionID
		}
		status := body.Status
		if status == "" {
			status = body.Model.Status
		}
		event = service.WebhookEvent{
			Provider:   provider,
			ProviderID: formatTransactionID(transactionID),
			Status:     status,
		}
	}

	if err := h.payments.IngestWebhook(c.Request.Context(), event); err != nil {
		h.log.Error().Err(err).Str("provider", string(provider)).Msg("webhook ingestion failed")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type moderateTaskRequest struct {
	Approved *bool   `json:"approved" binding:"required"`
	Comment  *string `json:"comment"`
}

func (h *Handler) moderateTask(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req moderateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.Moderate(c.Request.Context(), id, principal.UserID, *req.Approved, req.Comment)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskResponse(task))
}

type resolveDisputeRequest struct {
	Refund *bool `json:"refund" binding:"required"`
}

func (h *Handler) resolveDispute(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.ResolveDispute(c.Request.Context(), id, principal.UserID, *req.Refund)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

func (h *Handler) exportOrders(c *gin.Context) {
	result, err := h.orders.ExportLedger(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "kind": "NOT_FOUND"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "kind": "FORBIDDEN"})
	case errors.Is(err, service.ErrSelfResponse):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "kind": "SELF_RESPONSE_FORBIDDEN"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "INVALID_TRANSITION"})
	case errors.Is(err, service.ErrContentPolicyViolation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "CONTENT_POLICY_VIOLATION"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "INVALID_INPUT"})
	case errors.Is(err, service.ErrDuplicateResponse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "DUPLICATE_RESPONSE"})
	case errors.Is(err, service.ErrNotCapturable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "NOT_CAPTURABLE"})
	case errors.Is(err, service.ErrNotInDispute):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "NOT_IN_DISPUTE"})
	case errors.Is(err, service.ErrProviderConfigMissing):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider is not configured", "kind": "PROVIDER_CONFIG_MISSING"})
	case errors.Is(err, service.ErrProviderUnavailable):
		// Provider error text stays internal.
		h.log.Error().Err(err).Msg("payment provider call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable", "kind": "PROVIDER_UNAVAILABLE"})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func formatTransactionID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func taskResponse(t *model.Task) gin.H {
	return gin.H{
		"id":              t.ID,
		"sender_id":       t.SenderID,
		"title":           t.Title,
		"description":     t.Description,
		"size":            t.Size,
		"estimated_value": t.EstimatedValue,
		"from_airport":    t.FromAirport,
		"from_point":      t.FromPoint,
		"to_airport":      t.ToAirport,
		"to_point":        t.ToPoint,
		"date_from":       t.DateFrom.Format("2006-01-02"),
		"date_to":         t.DateTo.Format("2006-01-02"),
		"reward":          t.Reward,
		"status":          t.Status,
		"moderated_by":    t.ModeratedBy,
		"moderated_at":    t.ModeratedAt,
		"moderator_note":  t.ModeratorNote,
		"created_at":      t.CreatedAt,
	}
}

func orderResponse(o *model.Order) gin.H {
	return gin.H{
		"id":              o.ID,
		"task_id":         o.TaskID,
		"sender_id":       o.SenderID,
		"carrier_id":      o.CarrierID,
		"carrier_message": o.CarrierMessage,
		"status":          o.Status,
		"reward":          o.Reward,
		"platform_fee":    o.PlatformFee,
		"total_amount":    o.TotalAmount,
		"created_at":      o.CreatedAt,
	}
}

func paymentResponse(p *model.Payment) gin.H {
	return gin.H{
		"id":               p.ID,
		"order_id":         p.OrderID,
		"provider":         p.Provider,
		"payment_id":       p.ProviderID,
		"amount":           p.AmountMinor,
		"status":           p.Status,
		"confirmation_url": p.ConfirmationURL,
		"created_at":       p.CreatedAt,
	}
}
