package dto

import "time"

// PayloadType discriminates the parts of a user prompt.
type PayloadType string

const (
	PayloadTypeText    PayloadType = "text"
	PayloadTypeImage   PayloadType = "image"
	PayloadTypeProduct PayloadType = "product"
)

// UserPromptPayload is one typed part of a user turn: an utterance, a base64
// image (inbound) / image URI (persisted), or a product id.
type UserPromptPayload struct {
	Type   PayloadType `json:"type" validate:"required,oneof=text image product"`
	Value  string      `json:"value"`
	Locale string      `json:"locale,omitempty"`
}

// UserPrompt contains text and image data in the sequence the user added them.
type UserPrompt struct {
	Payload []UserPromptPayload `json:"payload"`
}

// Text flattens the prompt into a single string for history and LLM calls.
func (p UserPrompt) Text() string {
	out := ""
	for _, item := range p.Payload {
		switch item.Type {
		case PayloadTypeText:
			if out != "" {
				out += ". "
			}
			out += item.Value
		case PayloadTypeImage:
			out += ". <IMAGE-URI: " + item.Value + ">"
		case PayloadTypeProduct:
			out += ". <PRODUCT-ID: " + item.Value + ">"
		}
	}
	return out
}

// DialogClassification is the router's verdict on a user turn.
type DialogClassification string

const (
	ClassificationChitChat     DialogClassification = "chit_chat"
	ClassificationValid        DialogClassification = "valid"
	ClassificationOutOfScope   DialogClassification = "out_of_scope"
	ClassificationContinuation DialogClassification = "continuation"
)

// DialogParticipant is the author of a dialog entry.
type DialogParticipant string

const (
	ParticipantUser      DialogParticipant = "user"
	ParticipantAssistant DialogParticipant = "assistant"
)

// Dialog is one participant turn persisted in a conversation. Immutable once
// appended.
type Dialog struct {
	Participant    DialogParticipant    `json:"participant"`
	Payload        []UserPromptPayload  `json:"payload"`
	Classification DialogClassification `json:"classification,omitempty"`
	Timestamp      time.Time            `json:"timestamp"`
	TraceID        string               `json:"trace_id,omitempty"`
}

// UserGender mirrors the stored user-profile enum.
type UserGender string

const (
	GenderMale   UserGender = "Male"
	GenderFemale UserGender = "Female"
	GenderOther  UserGender = "Other"
)

type UserProfile struct {
	ID            string     `json:"id" validate:"required"`
	UserName      string     `json:"user_name" validate:"required"`
	Description   string     `json:"description"`
	Gender        UserGender `json:"gender,omitempty"`
	SampleQueries []string   `json:"sample_queries,omitempty"`
	Role          string     `json:"role,omitempty"`
}

// SearchOverrides are per-request knobs layered over the stored search config.
type SearchOverrides struct {
	SemanticRanker *bool  `json:"semantic_ranker,omitempty"`
	VectorSearch   *bool  `json:"vector_search,omitempty"`
	Top            *int   `json:"top,omitempty"`
	ConfigVersion  string `json:"config_version,omitempty"`
}

type OrchestratorServiceOverrides struct {
	SearchResultsMergeStrategy string `json:"search_results_merge_strategy,omitempty"`
	ConfigVersion              string `json:"config_version,omitempty"`
}

type SessionManagerServiceOverrides struct {
	CheckSafeImageContent *bool  `json:"check_safe_image_content,omitempty"`
	ConfigVersion         string `json:"config_version,omitempty"`
}

type Overrides struct {
	SearchOverrides        *SearchOverrides                `json:"search_overrides,omitempty"`
	OrchestratorRuntime    *OrchestratorServiceOverrides   `json:"orchestrator_runtime,omitempty"`
	SessionManagerRuntime  *SessionManagerServiceOverrides `json:"session_manager_runtime,omitempty"`
	IsContentSafetyEnabled *bool                           `json:"is_content_safety_enabled,omitempty"`
}

// ChatRequest is the inbound frame from the client for one turn.
type ChatRequest struct {
	ConversationID     string                 `json:"conversation_id" validate:"required"`
	UserID             string                 `json:"user_id"`
	DialogID           string                 `json:"dialog_id"`
	ThreadID           string                 `json:"thread_id,omitempty"`
	Message            UserPrompt             `json:"message" validate:"required"`
	UserProfile        *UserProfile           `json:"user_profile,omitempty"`
	Overrides          Overrides              `json:"overrides"`
	AdditionalMetadata map[string]interface{} `json:"additional_metadata,omitempty"`
}

// Normalize applies the contract defaults that the wire format leaves blank.
func (r *ChatRequest) Normalize() {
	if r.UserID == "" {
		r.UserID = "anonymous"
	}
}

// Answer is the orchestrator's answer to a user query, final or incremental.
type Answer struct {
	AnswerString       string                 `json:"answer_string"`
	IsFinal            bool                   `json:"is_final"`
	DataPoints         []string               `json:"data_points,omitempty"`
	StepsExecution     map[string]StepTrace   `json:"steps_execution,omitempty"`
	SpeakAnswer        string                 `json:"speak_answer,omitempty"`
	SpeakerLocale      string                 `json:"speaker_locale,omitempty"`
	AdditionalMetadata map[string]interface{} `json:"additional_metadata,omitempty"`
}

// StepTrace records one orchestrator step's input and output for diagnostics.
type StepTrace struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// Error is the structured error surfaced to clients. Never carries stack traces.
type Error struct {
	Code    string `json:"error_str,omitempty"`
	Retry   bool   `json:"retry,omitempty"`
	Message string `json:"error_message,omitempty"`
}

// ChatResponse is the outbound frame. Multiple non-final frames may precede
// exactly one final frame per dialog_id.
type ChatResponse struct {
	ConnectionID   string  `json:"connection_id"`
	ConversationID string  `json:"conversation_id,omitempty"`
	DialogID       string  `json:"dialog_id,omitempty"`
	UserID         string  `json:"user_id,omitempty"`
	ThreadID       string  `json:"thread_id,omitempty"`
	Answer         *Answer `json:"answer,omitempty"`
	Error          *Error  `json:"error,omitempty"`
}

// IsFinal reports whether this frame terminates its dialog.
func (r ChatResponse) IsFinal() bool {
	if r.Error != nil {
		return true
	}
	return r.Answer != nil && r.Answer.IsFinal
}

// TaskEnvelope is the canonical task-queue payload: the turn request plus
// correlation headers.
type TaskEnvelope struct {
	ConnectionID string      `json:"connection_id"`
	SessionID    string      `json:"session_id"`
	Request      ChatRequest `json:"request"`
	EnqueuedAt   time.Time   `json:"enqueued_at"`
}
