package domain

type QuestionType string

const (
	QuestionGeneral        QuestionType = "general"
	QuestionMotivation     QuestionType = "motivation"
	QuestionTechnical      QuestionType = "technical"
	QuestionProblemSolving QuestionType = "problem_solving"
	QuestionTeamwork       QuestionType = "teamwork"
)

type PlanQuestion struct {
	ID       int          `json:"id"`
	Question string       `json:"question"`
	Type     QuestionType `json:"type"`
}

// InterviewPlan is produced once per session, before the greeting.
type InterviewPlan struct {
	Summary      string         `json:"summary"`
	Questions    []PlanQuestion `json:"questions"`
	SystemPrompt string         `json:"systemPrompt"`
	Model        string         `json:"model"`
	Usage        *Usage         `json:"usage,omitempty"`
}

// DefaultPlanQuestions is the fixed template every plan is built from.
func DefaultPlanQuestions() []PlanQuestion {
	return []PlanQuestion{
		{ID: 1, Question: "Расскажите о себе и своем опыте", Type: QuestionGeneral},
		{ID: 2, Question: "Почему вас заинтересовала эта позиция?", Type: QuestionMotivation},
		{ID: 3, Question: "Опишите ваш опыт работы с технологиями", Type: QuestionTechnical},
		{ID: 4, Question: "Как вы решаете сложные задачи?", Type: QuestionProblemSolving},
		{ID: 5, Question: "Расскажите о работе в команде", Type: QuestionTeamwork},
	}
}

const DefaultPlanSummary = "Универсальное интервью адаптированное под вакансию"
