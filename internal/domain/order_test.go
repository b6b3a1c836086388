package domain

import "testing"

func TestOrderStatusActive(t *testing.T) {
	cases := []struct {
		status   OrderStatus
		active   bool
		terminal bool
	}{
		{OrderStatusPlaced, true, false},
		{OrderStatusPartial, true, false},
		{OrderStatusFilled, false, true},
		{OrderStatusCancelled, false, true},
	}
	for _, c := range cases {
		if c.status.Active() != c.active {
			t.Errorf("%s: Active() = %v, want %v", c.status, c.status.Active(), c.active)
		}
		if c.status.Terminal() != c.terminal {
			t.Errorf("%s: Terminal() = %v, want %v", c.status, c.status.Terminal(), c.terminal)
		}
	}
}

func TestMarketCurrency(t *testing.T) {
	if MarketKR.Currency() != "KRW" {
		t.Errorf("KR currency = %s", MarketKR.Currency())
	}
	if MarketUS.Currency() != "USD" {
		t.Errorf("US currency = %s", MarketUS.Currency())
	}
}

func TestMarketValid(t *testing.T) {
	if !MarketKR.Valid() || !MarketUS.Valid() {
		t.Error("KR and US should be valid markets")
	}
	if Market("JP").Valid() {
		t.Error("JP should not be a valid market")
	}
}

func TestConditionTypeValid(t *testing.T) {
	for _, c := range []ConditionType{ConditionPriceBelow, ConditionPriceAbove, ConditionScheduled} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if ConditionType("volume_above").Valid() {
		t.Error("unknown condition type should be invalid")
	}
}
