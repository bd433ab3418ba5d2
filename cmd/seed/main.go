package main

import (
	"context"
	"flag"
	"log"

	"turion-be/internal/config"
	"turion-be/internal/entity"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/repository/unitofwork"
	"turion-be/internal/service"
	"turion-be/pkg/database"
	"turion-be/pkg/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// seed opens a balance for a user and optionally tops it up, for local
// development and support adjustments.
func main() {
	userFlag := flag.String("user", "", "user id to seed")
	amountFlag := flag.String("amount", "0", "extra credits to grant")
	typeFlag := flag.String("type", string(entity.CreditTransactionBonus), "transaction type: bonus or refund")
	reason := flag.String("reason", "Manual adjustment", "transaction description")
	flag.Parse()

	userId, err := uuid.Parse(*userFlag)
	if err != nil {
		log.Fatalf("Error: invalid -user: %v", err)
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		log.Fatalf("Error: invalid -amount: %v", err)
	}

	cfg := config.Load()
	db, err := database.NewGormDB(database.GormConfig{
		URL:      cfg.Database.Connection,
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)
	defer sysLogger.Sync()

	credits := service.NewCreditService(
		unitofwork.NewRepositoryFactory(db),
		events.NewDomainPublisher(nil, sysLogger),
		sysLogger,
	)

	ctx := context.Background()
	balance, err := credits.GetOrCreateBalance(ctx, userId)
	if err != nil {
		log.Fatalf("Error: failed to open balance: %v", err)
	}
	log.Printf("Balance for %s: %s", userId, balance.Current.StringFixed(2))

	if !amount.IsPositive() {
		return
	}

	tx, err := credits.Earn(ctx, userId, amount, entity.CreditTransactionType(*typeFlag), *reason,
		map[string]interface{}{"source": "seed"})
	if err != nil {
		log.Fatalf("Error: grant failed: %v", err)
	}
	log.Printf("Granted %s credits (transaction %s)", amount.StringFixed(2), tx.Id)
}
