package main

import (
	"os"

	"retail-be/internal/config"
	"retail-be/internal/db"
	"retail-be/internal/discount"
	"retail-be/internal/logger"
	"retail-be/internal/order"
	"retail-be/internal/status"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	orderRepo := order.NewRepository(database)
	discountRepo := discount.NewRepository(database)
	statusRepo := status.NewRepository(database)

	app := &App{
		Orders:    order.NewService(orderRepo, discountRepo, statusRepo),
		Discounts: discount.NewService(discountRepo),
		Statuses:  status.NewService(statusRepo),
		Recalc: order.RecalcOptions{
			Concurrency:   cfg.RecalcConcurrency,
			RatePerSecond: cfg.RecalcRate,
		},
		In:  os.Stdin,
		Out: os.Stdout,
	}

	if err := newCLI(app).Run(os.Args); err != nil {
		logger.L().Fatal("ordersctl failed", zap.Error(err))
	}
}
