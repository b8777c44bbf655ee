package conversation

import (
	"github.com/google/uuid"
)

// NodeID identifies a branch point in a conversation tree.
type NodeID uuid.UUID

// NullNode is the zero NodeID, used wherever a node reference is absent.
var NullNode = NodeID(uuid.Nil)

func NewNodeID() NodeID {
	return NodeID(uuid.New())
}

func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

func (id NodeID) IsNull() bool {
	return id == NullNode
}

// MarshalText implements encoding.TextMarshaler so a NodeID can serve as a
// JSON map key.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *NodeID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

func ParseNodeID(s string) (NodeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NullNode, err
	}
	return NodeID(u), nil
}

// MessageID identifies a message independently of where it sits in the tree.
type MessageID uuid.UUID

var NullMessage = MessageID(uuid.Nil)

func NewMessageID() MessageID {
	return MessageID(uuid.New())
}

func (id MessageID) String() string {
	return uuid.UUID(id).String()
}

func (id MessageID) IsNull() bool {
	return id == NullMessage
}

func (id MessageID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *MessageID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = MessageID(u)
	return nil
}

func ParseMessageID(s string) (MessageID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NullMessage, err
	}
	return MessageID(u), nil
}
