package conversation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type ContentType string

const (
	ContentTypeChatMessage ContentType = "chat-message"
	ContentTypeToolUse     ContentType = "tool-use"
	ContentTypeToolResult  ContentType = "tool-result"
)

// MessageContent is an interface for the different kinds of message content.
type MessageContent interface {
	ContentType() ContentType
	String() string
	View() string
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

type ChatMessageContent struct {
	Role   Role            `json:"role"`
	Text   string          `json:"text"`
	Images []*ImageContent `json:"images,omitempty"`
}

func (c *ChatMessageContent) ContentType() ContentType {
	return ContentTypeChatMessage
}

func (c *ChatMessageContent) String() string {
	return c.Text
}

func (c *ChatMessageContent) View() string {
	// If we are markdown, add a newline so that it becomes valid markdown to parse.
	text := c.Text
	if strings.HasPrefix(text, "```") {
		text = "\n" + text
	}
	return fmt.Sprintf("[%s]: %s", c.Role, strings.TrimRight(text, "\n"))
}

var _ MessageContent = (*ChatMessageContent)(nil)

// ToolUseContent records that the assistant asked for a tool invocation.
type ToolUseContent struct {
	CallID string          `json:"callID"`
	ToolID string          `json:"toolID"`
	Input  json.RawMessage `json:"input,omitempty"`
}

func (t *ToolUseContent) ContentType() ContentType {
	return ContentTypeToolUse
}

func (t *ToolUseContent) String() string {
	return fmt.Sprintf("ToolUseContent{CallID: %s, ToolID: %s, Input: %s}", t.CallID, t.ToolID, t.Input)
}

func (t *ToolUseContent) View() string {
	return fmt.Sprintf("[tool-use]: %s(%s)", t.ToolID, t.Input)
}

var _ MessageContent = (*ToolUseContent)(nil)

// ToolResultContent carries a tool's outcome back into the conversation.
// IsError marks results that report an execution failure, the model sees
// those and can react instead of the turn aborting.
type ToolResultContent struct {
	CallID  string `json:"callID"`
	ToolID  string `json:"toolID"`
	Result  string `json:"result"`
	IsError bool   `json:"isError,omitempty"`
}

func (t *ToolResultContent) ContentType() ContentType {
	return ContentTypeToolResult
}

func (t *ToolResultContent) String() string {
	return fmt.Sprintf("ToolResultContent{CallID: %s, Result: %s}", t.CallID, t.Result)
}

func (t *ToolResultContent) View() string {
	marker := ""
	if t.IsError {
		marker = " (error)"
	}
	return fmt.Sprintf("[tool-result%s]: %s", marker, t.Result)
}

var _ MessageContent = (*ToolResultContent)(nil)

type ImageDetail string

const (
	ImageDetailLow  ImageDetail = "low"
	ImageDetailHigh ImageDetail = "high"
	ImageDetailAuto ImageDetail = "auto"
)

const maxImageSize = 20 * 1024 * 1024

// ImageContent is an attachment on a chat message, either by URL or inline.
type ImageContent struct {
	ImageURL     string      `json:"imageURL,omitempty"`
	ImageContent []byte      `json:"imageContent,omitempty"`
	ImageName    string      `json:"imageName"`
	MediaType    string      `json:"mediaType,omitempty"`
	Detail       ImageDetail `json:"detail,omitempty"`
}

func NewImageContentFromFile(path string) (*ImageContent, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return &ImageContent{
			ImageURL:  path,
			ImageName: filepath.Base(path),
			Detail:    ImageDetailAuto,
		}, nil
	}
	return newImageContentFromLocalFile(path)
}

func newImageContentFromLocalFile(path string) (*ImageContent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %v", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %v", err)
	}

	if fileInfo.Size() > maxImageSize {
		return nil, fmt.Errorf("image size exceeds 20MB limit")
	}

	mediaType := getMediaTypeFromExtension(filepath.Ext(path))
	if mediaType == "" {
		return nil, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}

	return &ImageContent{
		ImageContent: content,
		ImageName:    fileInfo.Name(),
		MediaType:    mediaType,
		Detail:       ImageDetailAuto,
	}, nil
}

func getMediaTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}

// Message is one entry in a conversation. Its position in the tree is held by
// the Variant that owns it, not by the message itself.
type Message struct {
	ID         MessageID `json:"id"`
	Time       time.Time `json:"time"`
	LastUpdate time.Time `json:"lastUpdate"`

	// Model records which model produced an assistant message, if known.
	Model string `json:"model,omitempty"`

	Content  MessageContent         `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type MessageOption func(*Message)

func WithMetadata(metadata map[string]interface{}) MessageOption {
	return func(message *Message) {
		message.Metadata = metadata
	}
}

func WithTime(time time.Time) MessageOption {
	return func(message *Message) {
		message.Time = time
	}
}

func WithID(id MessageID) MessageOption {
	return func(message *Message) {
		message.ID = id
	}
}

func WithModel(model string) MessageOption {
	return func(message *Message) {
		message.Model = model
	}
}

func NewMessage(content MessageContent, options ...MessageOption) *Message {
	ret := &Message{
		Content:    content,
		ID:         NewMessageID(),
		Time:       time.Now(),
		LastUpdate: time.Now(),
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func NewChatMessage(role Role, text string, options ...MessageOption) *Message {
	return NewMessage(&ChatMessageContent{
		Role: role,
		Text: text,
	}, options...)
}

func NewToolUseMessage(callID string, toolID string, input json.RawMessage, options ...MessageOption) *Message {
	return NewMessage(&ToolUseContent{
		CallID: callID,
		ToolID: toolID,
		Input:  input,
	}, options...)
}

func NewToolResultMessage(callID string, toolID string, result string, isError bool, options ...MessageOption) *Message {
	return NewMessage(&ToolResultContent{
		CallID:  callID,
		ToolID:  toolID,
		Result:  result,
		IsError: isError,
	}, options...)
}

func (mn *Message) MarshalJSON() ([]byte, error) {
	type Alias Message
	return json.Marshal(&struct {
		ContentType ContentType `json:"contentType"`
		*Alias
	}{
		ContentType: mn.Content.ContentType(),
		Alias:       (*Alias)(mn),
	})
}

// messageAlias is the intermediate representation for unmarshalling, the
// content is decoded in a second pass once contentType is known.
type messageAlias struct {
	ID          MessageID              `json:"id"`
	Time        time.Time              `json:"time"`
	LastUpdate  time.Time              `json:"lastUpdate"`
	Model       string                 `json:"model"`
	Content     json.RawMessage        `json:"content"`
	Metadata    map[string]interface{} `json:"metadata"`
	ContentType ContentType            `json:"contentType"`
}

func (mn *Message) UnmarshalJSON(data []byte) error {
	var mna messageAlias
	if err := json.Unmarshal(data, &mna); err != nil {
		return err
	}

	switch mna.ContentType {
	case ContentTypeChatMessage:
		var content *ChatMessageContent
		if err := json.Unmarshal(mna.Content, &content); err != nil {
			return err
		}
		mn.Content = content
	case ContentTypeToolUse:
		var content *ToolUseContent
		if err := json.Unmarshal(mna.Content, &content); err != nil {
			return err
		}
		mn.Content = content
	case ContentTypeToolResult:
		var content *ToolResultContent
		if err := json.Unmarshal(mna.Content, &content); err != nil {
			return err
		}
		mn.Content = content
	case "":
		// legacy documents that predate the contentType discriminator
		// only ever held plain chat messages
		var content *ChatMessageContent
		if err := json.Unmarshal(mna.Content, &content); err != nil {
			return err
		}
		mn.Content = content
	default:
		return fmt.Errorf("unknown content type %q", mna.ContentType)
	}

	mn.ID = mna.ID
	mn.Time = mna.Time
	mn.LastUpdate = mna.LastUpdate
	mn.Model = mna.Model
	mn.Metadata = mna.Metadata
	return nil
}

// Thread is a linear sequence of messages, the shape handed to providers as
// request context.
type Thread []*Message

// GetSinglePrompt concatenates all chat messages with a role prefix. A single
// chat message is returned bare.
func (messages Thread) GetSinglePrompt() string {
	if len(messages) == 0 {
		return ""
	}

	if len(messages) == 1 && messages[0].Content.ContentType() == ContentTypeChatMessage {
		return messages[0].Content.(*ChatMessageContent).Text
	}

	prompt := ""
	for _, message := range messages {
		if message.Content.ContentType() == ContentTypeChatMessage {
			message := message.Content.(*ChatMessageContent)
			prompt += fmt.Sprintf("[%s]: %s\n", message.Role, message.Text)
		}
	}

	return prompt
}

// ToString renders the whole thread with the View representation of each
// message's content.
func (messages Thread) ToString() string {
	var sb strings.Builder
	for _, message := range messages {
		sb.WriteString(message.Content.View())
		sb.WriteString("\n")
	}
	return sb.String()
}
