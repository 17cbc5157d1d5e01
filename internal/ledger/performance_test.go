package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

func TestPerformanceScore(t *testing.T) {
	tests := []struct {
		name        string
		rating      float64
		compliments int
		complaints  int
		wantScore   float64
		wantStatus  PerformanceStatus
	}{
		{name: "perfect rating", rating: 5, wantScore: 50, wantStatus: PerformanceExcellent},
		{name: "boundary excellent", rating: 4, wantScore: 40, wantStatus: PerformanceExcellent},
		{name: "good", rating: 3, wantScore: 30, wantStatus: PerformanceGood},
		{name: "boundary good", rating: 2, wantScore: 20, wantStatus: PerformanceGood},
		{name: "poor", rating: 1, wantScore: 10, wantStatus: PerformancePoor},
		{name: "complaints drag down", rating: 5, complaints: 4, wantScore: 10, wantStatus: PerformancePoor},
		{name: "compliments lift", rating: 2, compliments: 2, wantScore: 40, wantStatus: PerformanceExcellent},
		{name: "no ratings", wantScore: 0, wantStatus: PerformancePoor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, status := PerformanceScore(tt.rating, tt.compliments, tt.complaints)
			assert.InDelta(t, tt.wantScore, score, 1e-9)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestEmployeePerformance(t *testing.T) {
	chef := &model.Account{Role: model.RoleChef, RatingSum: 18, RatingCount: 4, ComplimentCount: 1}

	score, status := EmployeePerformance(chef)
	assert.InDelta(t, 55, score, 1e-9)
	assert.Equal(t, PerformanceExcellent, status)
}
