package makeup

import (
	"math"
	"sort"
)

// Summary aggregates all obligations of one student.
type Summary struct {
	StudentID           string    `json:"student_id"`
	TotalHoursOwed      float64   `json:"total_hours_owed"`
	TotalHoursCompleted float64   `json:"total_hours_completed"`
	BalanceRemaining    float64   `json:"balance_remaining"`
	OpenCount           int       `json:"open_count"`
	OverdueCount        int       `json:"overdue_count"`
	Records             []*Record `json:"records"`
}

// Summarize folds records of studentID. Records are ordered by due date then id.
// today (YYYY-MM-DD) is used for the overdue count; empty disables it.
func Summarize(studentID string, records []*Record, today string) Summary {
	var owed, completed int64
	s := Summary{StudentID: studentID, Records: make([]*Record, 0, len(records))}

	for _, r := range records {
		if r == nil || r.StudentID != studentID {
			continue
		}
		owed += hundredths(r.HoursOwed)
		completed += hundredths(r.HoursCompleted)
		if r.Status != StatusCompleted {
			s.OpenCount++
		}
		if today != "" && r.IsOverdue(today) {
			s.OverdueCount++
		}
		s.Records = append(s.Records, r)
	}

	sort.Slice(s.Records, func(i, j int) bool {
		a, b := s.Records[i], s.Records[j]
		if a.DueDate != b.DueDate {
			return a.DueDate < b.DueDate
		}
		return a.ID < b.ID
	})

	s.TotalHoursOwed = float64(owed) / 100
	s.TotalHoursCompleted = float64(completed) / 100
	s.BalanceRemaining = float64(owed-completed) / 100
	return s
}

// SummarizeAll groups records by student and returns one summary per
// student with at least one obligation, largest balance first.
func SummarizeAll(records []*Record, today string) []Summary {
	byStudent := make(map[string][]*Record)
	for _, r := range records {
		if r == nil {
			continue
		}
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	out := make([]Summary, 0, len(byStudent))
	for studentID, recs := range byStudent {
		out = append(out, Summarize(studentID, recs, today))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BalanceRemaining != out[j].BalanceRemaining {
			return out[i].BalanceRemaining > out[j].BalanceRemaining
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

func hundredths(h float64) int64 {
	return int64(math.Round(h * 100))
}
