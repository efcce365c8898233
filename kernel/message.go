package kernel

// Header is the envelope every message carries for itself, and every reply
// echoes from its triggering request as ParentHeader.
type Header struct {
	MsgID    string `json:"msg_id"`
	Username string `json:"username"`
	Session  string `json:"session"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

const protocolVersion = "5.3"

// Message is the parsed, still-untyped form of a framed wire message: header
// and parent header are decoded, metadata and content stay as raw maps until
// a handler decodes the content into the verb-specific struct it expects.
type Message struct {
	Header       Header                 `json:"header"`
	ParentHeader Header                 `json:"parent_header"`
	Metadata     map[string]interface{} `json:"metadata"`
	Content      map[string]interface{} `json:"content"`
	Buffers      [][]byte               `json:"-"`
}

// --- kernel_info ---

type languageInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Mimetype      string `json:"mimetype"`
	FileExtension string `json:"file_extension"`
}

type kernelInfoReply struct {
	ProtocolVersion       string       `json:"protocol_version"`
	Implementation        string       `json:"implementation"`
	ImplementationVersion string       `json:"implementation_version"`
	LanguageInfo          languageInfo `json:"language_info"`
	Banner                string       `json:"banner"`
}

// --- execute ---

type executeRequestContent struct {
	Code         string `json:"code"`
	Silent       bool   `json:"silent"`
	StoreHistory bool   `json:"store_history"`
	AllowStdin   bool   `json:"allow_stdin"`
	StopOnError  bool   `json:"stop_on_error"`
}

type executeReplyOK struct {
	Status          string                 `json:"status"`
	ExecutionCount  int                    `json:"execution_count"`
	Payload         []interface{}          `json:"payload"`
	UserExpressions map[string]interface{} `json:"user_expressions"`
}

type executeReplyError struct {
	Status         string   `json:"status"`
	ExecutionCount int      `json:"execution_count"`
	Ename          string   `json:"ename"`
	Evalue         string   `json:"evalue"`
	Traceback      []string `json:"traceback"`
}

type statusContent struct {
	ExecutionState string `json:"execution_state"`
}

type executeInputContent struct {
	Code           string `json:"code"`
	ExecutionCount int    `json:"execution_count"`
}

type executeResultContent struct {
	ExecutionCount int                    `json:"execution_count"`
	Data           map[string]interface{} `json:"data"`
	Metadata       map[string]interface{} `json:"metadata"`
}

type streamContent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type errorContent struct {
	Ename     string   `json:"ename"`
	Evalue    string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

// --- shutdown / interrupt ---

type shutdownContent struct {
	Restart bool `json:"restart"`
}

type interruptReplyContent struct {
	Status string `json:"status"`
}

// --- is_complete ---

type isCompleteRequestContent struct {
	Code string `json:"code"`
}

type isCompleteReplyContent struct {
	Status string `json:"status"`
	Indent string `json:"indent,omitempty"`
}

// --- complete ---

type completeRequestContent struct {
	Code      string `json:"code"`
	CursorPos int    `json:"cursor_pos"`
}

type completeReplyContent struct {
	Matches     []string               `json:"matches"`
	CursorStart int                    `json:"cursor_start"`
	CursorEnd   int                    `json:"cursor_end"`
	Metadata    map[string]interface{} `json:"metadata"`
	Status      string                 `json:"status"`
}

// --- comm_info ---

type commInfoRequestContent struct {
	TargetName string `json:"target_name"`
}

type commInfoReplyContent struct {
	Comms  map[string]interface{} `json:"comms"`
	Status string                 `json:"status"`
}

// --- stdin ---

type inputRequestContent struct {
	Prompt   string `json:"prompt"`
	Password bool   `json:"password"`
}

type inputReplyContent struct {
	Value string `json:"value"`
}
