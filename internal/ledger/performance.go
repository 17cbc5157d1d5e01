package ledger

import "github.com/mmeshcher/restaurant-system/internal/model"

// PerformanceStatus описывает оценку работы сотрудника.
type PerformanceStatus string

const (
	PerformanceExcellent PerformanceStatus = "excellent"
	PerformanceGood      PerformanceStatus = "good"
	PerformancePoor      PerformanceStatus = "poor"
)

const (
	excellentScore = 40
	poorScore      = 20
)

// PerformanceScore вычисляет балл сотрудника: средняя оценка даёт до 50 баллов,
// каждая благодарность +10, каждая жалоба −10.
func PerformanceScore(averageRating float64, compliments, complaints int) (float64, PerformanceStatus) {
	score := averageRating/5*50 + float64(compliments-complaints)*10

	switch {
	case score >= excellentScore:
		return score, PerformanceExcellent
	case score < poorScore:
		return score, PerformancePoor
	default:
		return score, PerformanceGood
	}
}

// EmployeePerformance вычисляет балл по накопленным показателям учётной записи.
func EmployeePerformance(acc *model.Account) (float64, PerformanceStatus) {
	return PerformanceScore(acc.AverageRating(), acc.ComplimentCount, acc.ComplaintCount)
}
