package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/region23/servicedesk/internal/storage/sqlite"
	"github.com/region23/servicedesk/pkg/logger"
)

// Epoch фиксированный момент, от которого тесты отсчитывают время
var Epoch = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// SetupTestDB создает in-memory SQLite базу данных для тестов
func SetupTestDB(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()

	storage, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		storage.Close()
	})

	return storage
}

// SetupTestLogger создает тестовый логгер, который ничего не пишет
func SetupTestLogger() *logger.Logger {
	return logger.Nop()
}

// TestContext создает контекст для тестов, отменяемый по завершении теста
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
