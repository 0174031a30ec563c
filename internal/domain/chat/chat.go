package chat

// Roles as the client sends them. Anything that is not "human" is treated
// as a model turn when the history is forwarded upstream.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type AskRequest struct {
	Question    string `json:"question"`
	ChatHistory []Turn `json:"chatHistory"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}
