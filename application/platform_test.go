package application

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"stakehub/domain/entities"
	"stakehub/domain/interfaces"
	"stakehub/domain/testhelpers"
)

func TestCopyWalletSummary_CallersDoNotShareMaps(t *testing.T) {
	t.Parallel()

	shared := &interfaces.WalletSummary{
		UserID:        7,
		WalletBalance: testhelpers.Dec("12.50"),
		CommissionByType: map[entities.CommissionType]decimal.Decimal{
			entities.CommissionTypeLeaderBonus: testhelpers.Dec("0.05"),
		},
	}

	first := copyWalletSummary(shared)
	second := copyWalletSummary(shared)
	first.CommissionByType[entities.CommissionTypeLeaderBonus] = testhelpers.Dec("99")
	first.WalletBalance = testhelpers.Dec("0")

	assert.True(t, second.CommissionByType[entities.CommissionTypeLeaderBonus].Equal(testhelpers.Dec("0.05")))
	assert.True(t, shared.CommissionByType[entities.CommissionTypeLeaderBonus].Equal(testhelpers.Dec("0.05")))
	assert.True(t, second.WalletBalance.Equal(testhelpers.Dec("12.50")))
	assert.NotSame(t, first, second)
}

func TestCopyWalletSummary_NilMapStaysNil(t *testing.T) {
	t.Parallel()

	c := copyWalletSummary(&interfaces.WalletSummary{UserID: 3})
	assert.Nil(t, c.CommissionByType)
	assert.Equal(t, int64(3), c.UserID)
}
