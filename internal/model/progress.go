package model

import "time"

type Metrics struct {
	TotalTasks           int     `json:"total_tasks"`
	CompletedTasks       int     `json:"completed_tasks"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

type WeeklyProgress struct {
	WeekNumber           int     `json:"week_number"`
	Phase                string  `json:"phase"`
	StartDate            string  `json:"start_date"`
	EndDate              string  `json:"end_date"`
	TotalTasks           int     `json:"total_tasks"`
	CompletedTasks       int     `json:"completed_tasks"`
	CompletionPercentage float64 `json:"completion_percentage"`
	DSACompleted         int     `json:"dsa_completed"`
	ProjectsCompleted    int     `json:"projects_completed"`
	ApplicationsSent     int     `json:"applications_sent"`
}

type CategoryStats struct {
	Category   Category `json:"category"`
	Total      int      `json:"total"`
	Completed  int      `json:"completed"`
	Percentage float64  `json:"percentage"`
}

type DailyProgress struct {
	Date string `json:"date"`
	Metrics
	CategoryStats []CategoryStats `json:"category_stats"`
	Tasks         []Task          `json:"tasks"`
}

type TodayBlock struct {
	Date string `json:"date"`
	Metrics
	Tasks []Task `json:"tasks"`
}

type WeekBlock struct {
	WeekNumber int    `json:"week_number"`
	Phase      string `json:"phase"`
	Metrics
}

type DashboardOverview struct {
	Overview             Metrics         `json:"overview"`
	Today                TodayBlock      `json:"today"`
	CurrentWeek          WeekBlock       `json:"current_week"`
	CategoryDistribution []CategoryStats `json:"category_distribution"`
}

type RecommendationRecord struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	UserPrompt      string    `json:"user_prompt"`
	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}
