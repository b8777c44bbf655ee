package conversation

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Manager is the serialized entry point for everything that touches one
// conversation: the orchestrator persisting streamed messages, and user
// driven edit, resend, delete and variant navigation. All operations on one
// manager are mutually exclusive, which is what keeps structural edits from
// racing an in-flight request for the same chat.
type Manager interface {
	ChatID() string
	SystemPrompt() string
	SetTitle(title string)

	// Flatten returns the active path, the exact list handed to a provider.
	Flatten() Thread
	// Snapshot returns a deep copy of the conversation for display.
	Snapshot() *Conversation

	AppendMessages(msgs ...*Message) []NodeID
	CreateBranch(nodeID NodeID, msg *Message) (NodeID, error)
	SwitchVariant(nodeID NodeID, variantIndex int) error
	DeleteMessage(messageID MessageID) error
	BranchInfo(nodeID NodeID) (BranchInfo, error)
	FindNode(messageID MessageID) (NodeID, bool)
	GetMessage(id MessageID) (*Message, bool)

	Save() error
}

// SaveFunc persists a conversation snapshot. Managers treat it as an atomic
// replace.
type SaveFunc func(*Conversation) error

type ManagerImpl struct {
	mu       sync.Mutex
	conv     *Conversation
	saveFunc SaveFunc
	autosave bool
}

var _ Manager = (*ManagerImpl)(nil)

type ManagerOption func(*ManagerImpl)

// WithConversation wraps an existing conversation, migrating it first.
func WithConversation(conv *Conversation) ManagerOption {
	return func(m *ManagerImpl) {
		conv.Migrate()
		m.conv = conv
	}
}

func WithChatID(id string) ManagerOption {
	return func(m *ManagerImpl) {
		m.conv.ID = id
	}
}

func WithSystemPrompt(prompt string) ManagerOption {
	return func(m *ManagerImpl) {
		m.conv.SystemPrompt = prompt
	}
}

func WithTitle(title string) ManagerOption {
	return func(m *ManagerImpl) {
		m.conv.Title = title
	}
}

func WithMessages(messages ...*Message) ManagerOption {
	return func(m *ManagerImpl) {
		for _, msg := range messages {
			m.conv.AppendToActivePath(msg)
		}
	}
}

// WithSaveFunc sets the persistence hook used by Save.
func WithSaveFunc(f SaveFunc) ManagerOption {
	return func(m *ManagerImpl) {
		m.saveFunc = f
	}
}

// WithAutosave saves after every mutating operation. Save errors are logged,
// not surfaced, so a broken disk cannot corrupt an in-memory conversation.
func WithAutosave(enabled bool) ManagerOption {
	return func(m *ManagerImpl) {
		m.autosave = enabled
	}
}

func NewManager(options ...ManagerOption) *ManagerImpl {
	ret := &ManagerImpl{
		conv: NewConversation(uuid.NewString()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (m *ManagerImpl) ChatID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv.ID
}

func (m *ManagerImpl) SystemPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv.SystemPrompt
}

func (m *ManagerImpl) SetTitle(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conv.Title = title
	m.conv.touch()
	m.autoSaveLocked()
}

func (m *ManagerImpl) Flatten() Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv.Flatten()
}

func (m *ManagerImpl) Snapshot() *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv.Clone()
}

func (m *ManagerImpl) AppendMessages(msgs ...*Message) []NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]NodeID, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, m.conv.AppendToActivePath(msg))
	}
	m.autoSaveLocked()
	return ids
}

func (m *ManagerImpl) CreateBranch(nodeID NodeID, msg *Message) (NodeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.conv.CreateBranch(nodeID, msg)
	if err != nil {
		return NullNode, err
	}
	m.autoSaveLocked()
	return id, nil
}

func (m *ManagerImpl) SwitchVariant(nodeID NodeID, variantIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.conv.SwitchVariant(nodeID, variantIndex); err != nil {
		return err
	}
	m.autoSaveLocked()
	return nil
}

func (m *ManagerImpl) DeleteMessage(messageID MessageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.conv.DeleteMessage(messageID); err != nil {
		return err
	}
	m.autoSaveLocked()
	return nil
}

func (m *ManagerImpl) BranchInfo(nodeID NodeID) (BranchInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv.BranchInfo(nodeID)
}

func (m *ManagerImpl) FindNode(messageID MessageID) (NodeID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv.FindNode(messageID)
}

func (m *ManagerImpl) GetMessage(id MessageID) (*Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv.GetMessageByID(id)
}

func (m *ManagerImpl) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *ManagerImpl) saveLocked() error {
	if m.saveFunc == nil {
		return nil
	}
	return m.saveFunc(m.conv.Clone())
}

func (m *ManagerImpl) autoSaveLocked() {
	if !m.autosave {
		return
	}
	if err := m.saveLocked(); err != nil {
		log.Warn().Err(err).Str("chat_id", m.conv.ID).Msg("autosave failed")
	}
}
