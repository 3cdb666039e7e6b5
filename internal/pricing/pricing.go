// Package pricing computes order totals for subscription deliveries:
// item subtotals, coupon discounts and delivery fees. All amounts are in
// paise to keep the arithmetic exact. The fee tiers and coupon catalog are
// loaded from a YAML rules file so ops can adjust them without a deploy.
package pricing

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v2"
)

// CouponError describes why a coupon could not be applied
type CouponError struct {
	Code    string
	Message string
}

func (e CouponError) Error() string {
	return e.Message
}

var (
	ErrCouponNotFound = CouponError{Code: "COUPON_NOT_FOUND", Message: "coupon code is not valid"}
	ErrCouponExpired  = CouponError{Code: "COUPON_EXPIRED", Message: "coupon code has expired"}
	ErrCouponMinOrder = CouponError{Code: "COUPON_MIN_ORDER", Message: "order subtotal is below the coupon minimum"}
)

// Coupon types
const (
	CouponPercent = "percent"
	CouponFlat    = "flat"
)

// Coupon is a discount rule from the pricing rules file.
type Coupon struct {
	Code        string     `yaml:"code" json:"code"`
	Type        string     `yaml:"type" json:"type"`
	Value       int64      `yaml:"value" json:"value"`
	MaxDiscount int64      `yaml:"max_discount,omitempty" json:"max_discount,omitempty"`
	MinOrder    int64      `yaml:"min_order,omitempty" json:"min_order,omitempty"`
	ExpiresAt   *time.Time `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
	IsActive    bool       `yaml:"is_active" json:"is_active"`
}

// FeeTier maps a minimum subtotal to a delivery fee. Tiers are matched by
// the highest min_subtotal not exceeding the order subtotal, so a zero
// fee above a threshold expresses free delivery.
type FeeTier struct {
	MinSubtotal int64 `yaml:"min_subtotal" json:"min_subtotal"`
	Fee         int64 `yaml:"fee" json:"fee"`
}

// Rules is the full pricing rule set.
type Rules struct {
	Currency string    `yaml:"currency" json:"currency"`
	FeeTiers []FeeTier `yaml:"delivery_fees" json:"delivery_fees"`
	Coupons  []Coupon  `yaml:"coupons" json:"coupons"`
}

// DefaultRules returns the built-in rule set used when no rules file is
// configured: 30 rupee fee, free delivery above 500 rupees, no coupons.
func DefaultRules() *Rules {
	return &Rules{
		Currency: "INR",
		FeeTiers: []FeeTier{
			{MinSubtotal: 0, Fee: 3000},
			{MinSubtotal: 50000, Fee: 0},
		},
	}
}

// LoadRules reads and parses a YAML rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing rules: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse pricing rules: %w", err)
	}

	if len(rules.FeeTiers) == 0 {
		return nil, fmt.Errorf("pricing rules must define at least one delivery fee tier")
	}

	sort.Slice(rules.FeeTiers, func(i, j int) bool {
		return rules.FeeTiers[i].MinSubtotal < rules.FeeTiers[j].MinSubtotal
	})

	return &rules, nil
}

// LineItem is a priced order line.
type LineItem struct {
	ProductID string `json:"product_id"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Quote is the outcome of pricing an order.
type Quote struct {
	Subtotal    int64  `json:"subtotal"`
	Discount    int64  `json:"discount"`
	DeliveryFee int64  `json:"delivery_fee"`
	Total       int64  `json:"total"`
	CouponCode  string `json:"coupon_code,omitempty"`
	Currency    string `json:"currency"`
}

// DeliveryFee returns the fee for an order subtotal: the tier with the
// highest min_subtotal that the subtotal reaches.
func (r *Rules) DeliveryFee(subtotal int64) int64 {
	var fee int64
	for _, tier := range r.FeeTiers {
		if subtotal >= tier.MinSubtotal {
			fee = tier.Fee
		}
	}
	return fee
}

// Quote prices an order. The coupon code is optional; an empty code
// applies no discount. The delivery fee is computed on the discounted
// subtotal.
func (r *Rules) Quote(items []LineItem, couponCode string, now time.Time) (*Quote, error) {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	q := &Quote{
		Subtotal: subtotal,
		Currency: r.Currency,
	}

	if couponCode != "" {
		discount, err := r.applyCoupon(couponCode, subtotal, now)
		if err != nil {
			return nil, err
		}
		q.Discount = discount
		q.CouponCode = couponCode
	}

	discounted := subtotal - q.Discount
	q.DeliveryFee = r.DeliveryFee(discounted)
	q.Total = discounted + q.DeliveryFee
	return q, nil
}

func (r *Rules) applyCoupon(code string, subtotal int64, now time.Time) (int64, error) {
	var coupon *Coupon
	for i := range r.Coupons {
		if r.Coupons[i].Code == code && r.Coupons[i].IsActive {
			coupon = &r.Coupons[i]
			break
		}
	}
	if coupon == nil {
		return 0, ErrCouponNotFound
	}

	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return 0, ErrCouponExpired
	}
	if subtotal < coupon.MinOrder {
		return 0, ErrCouponMinOrder
	}

	var discount int64
	switch coupon.Type {
	case CouponPercent:
		discount = subtotal * coupon.Value / 100
		if coupon.MaxDiscount > 0 && discount > coupon.MaxDiscount {
			discount = coupon.MaxDiscount
		}
	case CouponFlat:
		discount = coupon.Value
	default:
		return 0, ErrCouponNotFound
	}

	if discount > subtotal {
		discount = subtotal
	}
	return discount, nil
}
