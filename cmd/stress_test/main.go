package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-catalog/internal/adapter/storage"
	"github.com/rl1809/shop-catalog/internal/config"
	"github.com/rl1809/shop-catalog/internal/core/domain"
	"github.com/rl1809/shop-catalog/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
	quantity      = 1
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// Initialize MySQL
	db, err := storage.OpenMySQL(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	defer mysqlAdapter.Close()

	if err := mysqlAdapter.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// Seed a buyer and a product with fresh ids so runs never collide
	catalogService := service.NewCatalogService(mysqlAdapter, mysqlAdapter)
	buyer, err := catalogService.CreateUser(ctx, "stress buyer", fmt.Sprintf("stress-%s@example.com", uuid.NewString()))
	if err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	product, err := catalogService.CreateProduct(ctx, domain.Product{
		Name:     "stress item",
		Category: domain.CategoryElectronics,
		Price:    decimal.RequireFromString("99.00"),
		Stock:    initialStock,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, nil)

	// Counters
	var successCount, stockFailCount, otherFailCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := orderService.PlaceOrder(ctx, service.PlaceOrderRequest{
				UserID: buyer.ID,
				Lines:  []domain.OrderLine{{ProductID: product.ID, Quantity: quantity}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case service.IsStockFailure(err):
				stockFailCount.Add(1)
			default:
				otherFailCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	stockFail := stockFailCount.Load()
	otherFail := otherFailCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Stock Failures:   %d\n", stockFail)
	fmt.Printf("Other Failures:   %d\n", otherFail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock && stockFail == totalRequests-initialStock && otherFail == 0 {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d failed on stock\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d stock failures, got %d/%d (+%d other)\n",
			initialStock, totalRequests-initialStock, success, stockFail, otherFail)
	}

	// Verify final stock in MySQL
	final, err := mysqlAdapter.GetProduct(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final MySQL Stock: %d\n", final.Stock)

	if final.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", final.Stock)
	}
}
