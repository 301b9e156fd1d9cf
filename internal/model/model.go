package model

// Role represents a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single role-tagged message in a conversation.
// Turns are values: once created they are never modified.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn creates a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn creates an assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// SystemTurn creates a system turn.
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// Question represents a stored multiple-choice exam question.
// CorrectAnswer is an index into Options and is always in range
// for questions coming out of the store.
type Question struct {
	ID            int64    `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// GeneratedQuestion is a question produced on demand by the LLM.
// It has no stable ID and is never persisted, so it cannot be
// evaluated through the store lookup path.
type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// EvaluationResult is the outcome of checking a submitted answer.
type EvaluationResult struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}

// QuestionImport is used for loading questions from JSON seed files.
type QuestionImport struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Addr          string
	Lang          string  // UI and feedback language (de, en)
	StaticDir     string  // directory served at /, empty disables
	PromptVariant string  // chat system prompt variant (standard, motivational)
	HistoryWindow int     // prior turns sent to the provider, 0 = all
	Temperature   float32 // sampling temperature for chat completions
	MaxTokens     int     // reply length cap for chat completions
}

// AttemptStat aggregates answer attempts for one question.
type AttemptStat struct {
	QuestionID int64  `json:"question_id"`
	Question   string `json:"question"`
	Attempts   int    `json:"attempts"`
	Correct    int    `json:"correct"`
}

// StatsExport is the output shape of the stats subcommand.
type StatsExport struct {
	Questions []AttemptStat `json:"questions"`
	Total     int           `json:"total_attempts"`
}
