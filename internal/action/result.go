package action

// ResultItem is one element of a handler's result. The set of variants is
// closed; consumers dispatch with a type switch so the compiler flags any
// handling gap when a variant is added.
type ResultItem interface {
	resultItem()
}

// ScheduleItem asks the dispatcher to run another action at a later time.
type ScheduleItem struct {
	ExecuteAt  int64 // epoch seconds
	ActionID   string
	Parameters map[string]any
}

// UserMessageItem appends a user-role message to the conversation transcript.
type UserMessageItem struct {
	Message string
}

// AssistantMessageItem appends an assistant-role message to the transcript.
type AssistantMessageItem struct {
	Message string
}

// ToolMessageItem appends a tool-role message correlated to the tool call
// that produced it.
type ToolMessageItem struct {
	ToolID  string
	Message string
}

// EvaluateItem asks the conversation to take another reasoning step with
// no new input.
type EvaluateItem struct{}

// SpeakItem is text the client should synthesize and play.
type SpeakItem struct {
	Message string
}

// SoundItem is raw audio the client should play.
type SoundItem struct {
	Data []byte
}

// EndConversationItem terminates the conversation.
type EndConversationItem struct{}

func (ScheduleItem) resultItem()         {}
func (UserMessageItem) resultItem()      {}
func (AssistantMessageItem) resultItem() {}
func (ToolMessageItem) resultItem()      {}
func (EvaluateItem) resultItem()         {}
func (SpeakItem) resultItem()            {}
func (SoundItem) resultItem()            {}
func (EndConversationItem) resultItem()  {}
