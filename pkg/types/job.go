package types

// Job represents a scheduled notification job configuration
type Job struct {
	Name        string `json:"name"`
	TaskName    string `json:"task"`
	FireHour    int    `json:"fire_hour"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// JobConfig represents the job scheduler configuration
type JobConfig struct {
	Predefined []Job `json:"predefined"`
}

// DefaultJobs is used when the config file names no jobs.
func DefaultJobs() []Job {
	return []Job{
		{
			Name:        "andon_notifications",
			TaskName:    "department-report",
			FireHour:    8,
			Enabled:     true,
			Description: "Daily andon stop and idle downtime report per department",
		},
	}
}
