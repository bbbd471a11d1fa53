package restock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DimaJoyti/analytics-engine/internal/models"
)

func TestZScore_TableValues(t *testing.T) {
	assert.InDelta(t, 1.6449, zScore(0.95), 0.0001)
	assert.InDelta(t, 2.3263, zScore(0.99), 0.0001)
}

func TestZScore_ClampsOutsideTable(t *testing.T) {
	assert.Equal(t, serviceLevelZ[0].z, zScore(0.1))
	assert.Equal(t, serviceLevelZ[len(serviceLevelZ)-1].z, zScore(0.9999))
}

func TestZScore_Interpolates(t *testing.T) {
	z := zScore(0.875)
	assert.Greater(t, z, serviceLevelZ[2].z)
	assert.Less(t, z, serviceLevelZ[3].z)
}

func TestClassifyPriority_ZeroStockIsCritical(t *testing.T) {
	priority, score := classifyPriority(0, 50, nil, 7)
	assert.Equal(t, models.PriorityCritical, priority)
	assert.Equal(t, 100, score)
}

func TestClassifyPriority_BelowHalfReorderPointIsUrgent(t *testing.T) {
	priority, score := classifyPriority(20, 50, nil, 7)
	assert.Equal(t, models.PriorityUrgent, priority)
	assert.Equal(t, 80, score)
}

func TestClassifyPriority_BelowReorderPointIsHigh(t *testing.T) {
	priority, score := classifyPriority(40, 50, nil, 7)
	assert.Equal(t, models.PriorityHigh, priority)
	assert.Equal(t, 60, score)
}

func TestClassifyPriority_DaysUntilStockoutBelowLeadTimeIsUrgent(t *testing.T) {
	days := 3
	priority, score := classifyPriority(60, 50, &days, 7)
	assert.Equal(t, models.PriorityUrgent, priority)
	assert.Equal(t, 75, score)
}

func TestClassifyPriority_NoRiskIsLow(t *testing.T) {
	days := 60
	priority, score := classifyPriority(200, 50, &days, 7)
	assert.Equal(t, models.PriorityLow, priority)
	assert.Equal(t, 20, score)
}
