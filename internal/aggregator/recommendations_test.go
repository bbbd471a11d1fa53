package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DimaJoyti/analytics-engine/internal/models"
)

func TestClassifyRecommendationPriority(t *testing.T) {
	assert.Equal(t, models.PriorityCritical, classifyRecommendationPriority(models.RiskMedium, 0, 50))
	assert.Equal(t, models.PriorityUrgent, classifyRecommendationPriority(models.RiskHigh, 10, 50))
	assert.Equal(t, models.PriorityHigh, classifyRecommendationPriority(models.RiskMedium, 10, 50))
	assert.Equal(t, models.PriorityMedium, classifyRecommendationPriority(models.RiskMedium, 100, 50))
}
