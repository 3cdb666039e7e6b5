package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validWeeklyConfig() Config {
	return Config{
		Items:         []Item{{ProductID: "prod_milk", Quantity: 2}},
		Frequency:     FrequencyWeekly,
		Slot:          Slot{Hour: 8, Minute: 0},
		DeliveryDays:  []int{1, 3, 5},
		AddressID:     "addr_1",
		PaymentMethod: PaymentWallet,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid weekly", func(c *Config) {}, nil},
		{"valid daily", func(c *Config) {
			c.Frequency = FrequencyDaily
			c.DeliveryDays = nil
		}, nil},
		{"valid monthly", func(c *Config) {
			c.Frequency = FrequencyMonthly
			c.DeliveryDays = nil
			c.DeliveryDate = 15
		}, nil},
		{"no items", func(c *Config) { c.Items = nil }, ErrEmptyItems},
		{"zero quantity", func(c *Config) { c.Items[0].Quantity = 0 }, ErrInvalidQuantity},
		{"unknown frequency", func(c *Config) { c.Frequency = "fortnightly" }, ErrInvalidFrequency},
		{"missing address", func(c *Config) { c.AddressID = "" }, ErrMissingAddress},
		{"hour too large", func(c *Config) { c.Slot.Hour = 24 }, ErrInvalidTime},
		{"negative hour", func(c *Config) { c.Slot.Hour = -1 }, ErrInvalidTime},
		{"minute too large", func(c *Config) { c.Slot.Minute = 60 }, ErrInvalidTime},
		{"weekly without days", func(c *Config) { c.DeliveryDays = []int{} }, ErrMissingDeliveryDays},
		{"weekly day out of range", func(c *Config) { c.DeliveryDays = []int{1, 7} }, ErrMissingDeliveryDays},
		{"monthly date zero", func(c *Config) {
			c.Frequency = FrequencyMonthly
			c.DeliveryDate = 0
		}, ErrInvalidDeliveryDate},
		{"monthly date 32", func(c *Config) {
			c.Frequency = FrequencyMonthly
			c.DeliveryDate = 32
		}, ErrInvalidDeliveryDate},
		{"unknown payment method", func(c *Config) { c.PaymentMethod = "cheque" }, ErrInvalidPaymentMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validWeeklyConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantErr, err)
			}
		})
	}
}

func TestConfigValidateFirstFailureWins(t *testing.T) {
	// Several rules violated at once: the items check comes first.
	cfg := Config{Frequency: "whenever", Slot: Slot{Hour: 99}}
	assert.Equal(t, ErrEmptyItems, cfg.Validate())
}

func TestConfigValidateNamesField(t *testing.T) {
	cfg := validWeeklyConfig()
	cfg.DeliveryDays = nil

	err := cfg.Validate()
	var verr ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "delivery_days", verr.Field)
	assert.NotEmpty(t, verr.Message)
}

func TestConfigValidateIgnoresInactiveField(t *testing.T) {
	// A weekly config carrying a stale delivery_date (and vice versa) is
	// still valid; the inactive field is ignored, not rejected.
	weekly := validWeeklyConfig()
	weekly.DeliveryDate = 99
	assert.NoError(t, weekly.Validate())

	monthly := validWeeklyConfig()
	monthly.Frequency = FrequencyMonthly
	monthly.DeliveryDate = 15
	monthly.DeliveryDays = []int{42}
	assert.NoError(t, monthly.Validate())
}

func TestConfigValidatePure(t *testing.T) {
	cfg := validWeeklyConfig()
	before := cfg
	_ = cfg.Validate()
	assert.Equal(t, before, cfg)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg.StartDate = &start
	assert.NoError(t, cfg.Validate())
}
