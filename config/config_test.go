package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("AUTO_BILL_ON_REPAIR_COMPLETE", "")
	t.Setenv("CURRENCY", "")
	t.Setenv("CURRENCY_SYMBOL", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "INR", cfg.Business.Currency)
	assert.Equal(t, "₹", cfg.Business.CurrencySymbol)
	assert.Equal(t, 3, cfg.Business.SequenceMaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Business.SequenceBackoff)
	assert.False(t, cfg.Business.AutoBillOnRepairComplete)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("AUTO_BILL_ON_REPAIR_COMPLETE", "true")
	t.Setenv("REDIS_ENABLED", "not-a-bool")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Business.AutoBillOnRepairComplete)
	assert.True(t, cfg.Redis.Enabled)
}

func TestCurrencySymbolFollowsCode(t *testing.T) {
	t.Setenv("CURRENCY", "usd")
	t.Setenv("CURRENCY_SYMBOL", "")

	cfg := Load()
	assert.Equal(t, "USD", cfg.Business.Currency)
	assert.Equal(t, "$", cfg.Business.CurrencySymbol)

	t.Setenv("CURRENCY_SYMBOL", "Rs.")
	cfg = Load()
	assert.Equal(t, "Rs.", cfg.Business.CurrencySymbol)
}
