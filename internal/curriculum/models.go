package curriculum

// Curriculum holds the teaching material for one proficiency level (1-8).
type Curriculum struct {
	ID             int64  `db:"id" json:"id"`
	Level          int    `db:"level" json:"level"`
	Title          string `db:"title" json:"title"`
	Description    string `db:"description" json:"description"`
	BaseContent    string `db:"base_content" json:"base_content"`
	LearningGoals  string `db:"learning_goals" json:"learning_goals"`
	CommonPitfalls string `db:"common_pitfalls" json:"common_pitfalls"`
}
