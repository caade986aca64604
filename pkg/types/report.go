package types

import "time"

// DepartmentSummary aggregates one department's andon stops and idle downtime for a period.
type DepartmentSummary struct {
	Department  string  `db:"department" json:"department"`
	StopCount   int     `db:"stop_count" json:"stop_count"`
	StopMinutes float64 `db:"stop_minutes" json:"stop_minutes"`
	IdleCount   int     `db:"idle_count" json:"idle_count"`
	IdleMinutes float64 `db:"idle_minutes" json:"idle_minutes"`
}

func (d DepartmentSummary) StopDuration() time.Duration {
	return time.Duration(d.StopMinutes * float64(time.Minute))
}

func (d DepartmentSummary) IdleDuration() time.Duration {
	return time.Duration(d.IdleMinutes * float64(time.Minute))
}

// AchievementRate returns how well the department stayed within its stop target, as a
// percentage capped to [0, 100]. A zero target yields ok=false.
func (d DepartmentSummary) AchievementRate(targetMinutes float64) (rate float64, ok bool) {
	if targetMinutes <= 0 {
		return 0, false
	}
	rate = (1 - (d.StopMinutes-targetMinutes)/targetMinutes) * 100
	if d.StopMinutes <= targetMinutes {
		rate = 100
	}
	if rate < 0 {
		rate = 0
	}
	return rate, true
}
