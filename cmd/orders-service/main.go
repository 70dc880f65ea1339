package main

import (
	"fmt"
	"os"

	"github.com/adilbekov/handcarry-orders/internal/auth"
	"github.com/adilbekov/handcarry-orders/internal/config"
	"github.com/adilbekov/handcarry-orders/internal/db"
	"github.com/adilbekov/handcarry-orders/internal/excel"
	httphandler "github.com/adilbekov/handcarry-orders/internal/http"
	"github.com/adilbekov/handcarry-orders/internal/http/middleware"
	"github.com/adilbekov/handcarry-orders/internal/logger"
	"github.com/adilbekov/handcarry-orders/internal/model"
	"github.com/adilbekov/handcarry-orders/internal/payment"
	"github.com/adilbekov/handcarry-orders/internal/pdf"
	"github.com/adilbekov/handcarry-orders/internal/repository"
	"github.com/adilbekov/handcarry-orders/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	taskRepo := repository.NewTaskRepository(database)
	orderRepo := repository.NewOrderRepository(database)
	paymentRepo := repository.NewPaymentRepository(database)

	providers := map[model.PaymentProvider]payment.Provider{
		model.ProviderYooKassa: payment.NewYooKassaClient(
			cfg.Payments.YooKassaShopID,
			cfg.Payments.YooKassaSecretKey,
			cfg.Payments.YooKassaReturnURL,
			cfg.Payments.ProviderTimeout,
		),
		model.ProviderCloudPayments: payment.NewCloudPaymentsClient(
			cfg.Payments.CloudPaymentsPublicID,
			cfg.Payments.CloudPaymentsAPISecret,
			cfg.Payments.ProviderTimeout,
		),
	}

	taskService := service.NewTaskService(taskRepo, cfg)
	orderService := service.NewOrderService(orderRepo, taskRepo, excel.NewGenerator(), cfg)
	paymentService := service.NewPaymentService(paymentRepo, orderRepo, providers, pdf.NewGenerator(), log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(taskService, orderService, paymentService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting orders service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
