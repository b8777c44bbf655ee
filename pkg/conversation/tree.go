// Package conversation implements the branching conversation model. A
// conversation is an arena of nodes keyed by id; each node is a branch point
// holding one or more variants, and each variant owns a message plus an
// optional child node reference. Following the active variant at every node
// from the root yields the active path, whose flattened message list is what
// a provider receives as context.
package conversation

import (
	"encoding/json"
	"os"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// Variant is one alternative at a branch point. It exclusively owns its
// message, and its child node continues this variant's thread.
type Variant struct {
	Message *Message `json:"message"`
	ChildID NodeID   `json:"childNodeId,omitempty"`
}

// Node is a branch point. Variants are append-only and never reordered, so
// indices stay stable once handed out.
type Node struct {
	ID            NodeID     `json:"id"`
	Variants      []*Variant `json:"variants"`
	ActiveVariant int        `json:"activeVariantIndex"`
}

// Active returns the active variant, or nil when the node is malformed.
func (n *Node) Active() *Variant {
	if n.ActiveVariant < 0 || n.ActiveVariant >= len(n.Variants) {
		return nil
	}
	return n.Variants[n.ActiveVariant]
}

// Conversation is the persisted unit: tree structure plus chat level
// metadata. Documents written before the branching model carry a flat
// Messages list instead of Nodes; Migrate folds it into the arena.
type Conversation struct {
	ID           string `json:"id"`
	Title        string `json:"title,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`

	RootID NodeID           `json:"rootNodeId"`
	Nodes  map[NodeID]*Node `json:"nodes,omitempty"`

	// Messages is the legacy flat history. It is drained by Migrate and
	// stays empty afterwards.
	Messages []*Message `json:"messages,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		Nodes:     make(map[NodeID]*Node),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Conversation) touch() {
	c.UpdatedAt = time.Now()
}

// nodeIDFor derives a stable node id from the message that seeds the node,
// falling back to a fresh id when the message id is unusable or taken. A
// message owns at most one node, so collisions only occur on malformed input.
func (c *Conversation) nodeIDFor(msg *Message) NodeID {
	id := NodeID(msg.ID)
	if id.IsNull() {
		return NewNodeID()
	}
	if _, taken := c.Nodes[id]; taken {
		return NewNodeID()
	}
	return id
}

// Migrate converts the legacy flat message list into the node arena, one
// single-variant node per message, preserving order and message identity.
// Calling it on an already migrated conversation is a no-op.
func (c *Conversation) Migrate() {
	if c.Nodes == nil {
		c.Nodes = make(map[NodeID]*Node)
	}
	if len(c.Nodes) > 0 || len(c.Messages) == 0 {
		return
	}

	var prev *Variant
	for _, msg := range c.Messages {
		node := &Node{
			ID:       c.nodeIDFor(msg),
			Variants: []*Variant{{Message: msg}},
		}
		c.Nodes[node.ID] = node
		if prev == nil {
			c.RootID = node.ID
		} else {
			prev.ChildID = node.ID
		}
		prev = node.Variants[0]
	}
	c.Messages = nil
	c.touch()
}

// FindNode locates the node whose active variant carries the given message.
func (c *Conversation) FindNode(messageID MessageID) (NodeID, bool) {
	for id, node := range c.Nodes {
		v := node.Active()
		if v != nil && v.Message != nil && v.Message.ID == messageID {
			return id, true
		}
	}
	return NullNode, false
}

// findOwner locates the node owning the message through any of its variants,
// active or not.
func (c *Conversation) findOwner(messageID MessageID) (NodeID, *Node, bool) {
	for id, node := range c.Nodes {
		for _, v := range node.Variants {
			if v.Message != nil && v.Message.ID == messageID {
				return id, node, true
			}
		}
	}
	return NullNode, nil, false
}

// CreateBranch appends a new variant carrying msg to the node and makes it
// the active one. No existing variant is removed or reordered, all prior
// subtrees stay addressable. Returns the id of the branched node.
func (c *Conversation) CreateBranch(nodeID NodeID, msg *Message) (NodeID, error) {
	node, ok := c.Nodes[nodeID]
	if !ok {
		return NullNode, errors.Wrapf(ErrNodeNotFound, "node %s", nodeID)
	}

	node.Variants = append(node.Variants, &Variant{Message: msg})
	node.ActiveVariant = len(node.Variants) - 1
	c.touch()

	return nodeID, nil
}

// SwitchVariant sets the active variant index of a node. The flattened
// active path changes from that node onward to whatever continuation the
// target variant owns.
func (c *Conversation) SwitchVariant(nodeID NodeID, variantIndex int) error {
	node, ok := c.Nodes[nodeID]
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "node %s", nodeID)
	}
	if variantIndex < 0 || variantIndex >= len(node.Variants) {
		return errors.Wrapf(ErrIndexOutOfRange, "variant %d of %d at node %s", variantIndex, len(node.Variants), nodeID)
	}

	node.ActiveVariant = variantIndex
	c.touch()

	return nil
}

// DeleteMessage removes the node owning the message and splices its child
// subtree into the parent. It refuses to touch branch points: a node with
// more than one variant is left unchanged and ErrCannotDeleteBranchPoint is
// returned.
func (c *Conversation) DeleteMessage(messageID MessageID) error {
	nodeID, node, ok := c.findOwner(messageID)
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "message %s", messageID)
	}
	if len(node.Variants) > 1 {
		return errors.Wrapf(ErrCannotDeleteBranchPoint, "node %s has %d variants", nodeID, len(node.Variants))
	}

	childID := NullNode
	if len(node.Variants) == 1 {
		childID = node.Variants[0].ChildID
	}

	if parent := c.findParentVariant(nodeID); parent != nil {
		parent.ChildID = childID
	} else if c.RootID == nodeID {
		c.RootID = childID
	}

	delete(c.Nodes, nodeID)
	c.touch()

	return nil
}

// findParentVariant returns the variant whose child reference points at the
// node, or nil for the root.
func (c *Conversation) findParentVariant(nodeID NodeID) *Variant {
	for _, node := range c.Nodes {
		for _, v := range node.Variants {
			if v.ChildID == nodeID {
				return v
			}
		}
	}
	return nil
}

// BranchInfo is the read model driving previous/next variant navigation.
type BranchInfo struct {
	CurrentVariantIndex int  `json:"currentVariantIndex"`
	Total               int  `json:"total"`
	HasNext             bool `json:"hasNext"`
	HasPrevious         bool `json:"hasPrevious"`
}

func (c *Conversation) BranchInfo(nodeID NodeID) (BranchInfo, error) {
	node, ok := c.Nodes[nodeID]
	if !ok {
		return BranchInfo{}, errors.Wrapf(ErrNodeNotFound, "node %s", nodeID)
	}
	return BranchInfo{
		CurrentVariantIndex: node.ActiveVariant,
		Total:               len(node.Variants),
		HasNext:             node.ActiveVariant < len(node.Variants)-1,
		HasPrevious:         node.ActiveVariant > 0,
	}, nil
}

// Flatten walks the active path from the root and returns one message per
// node. The walk stops on a revisited node so a malformed document cannot
// hang it.
func (c *Conversation) Flatten() Thread {
	var thread Thread
	seen := map[NodeID]bool{}
	id := c.RootID
	for !id.IsNull() && !seen[id] {
		seen[id] = true
		node, ok := c.Nodes[id]
		if !ok {
			break
		}
		v := node.Active()
		if v == nil {
			break
		}
		if v.Message != nil {
			thread = append(thread, v.Message)
		}
		id = v.ChildID
	}
	return thread
}

// ActivePathIDs returns the node ids along the active path, root first.
func (c *Conversation) ActivePathIDs() []NodeID {
	var ids []NodeID
	seen := map[NodeID]bool{}
	id := c.RootID
	for !id.IsNull() && !seen[id] {
		seen[id] = true
		node, ok := c.Nodes[id]
		if !ok {
			break
		}
		ids = append(ids, id)
		v := node.Active()
		if v == nil {
			break
		}
		id = v.ChildID
	}
	return ids
}

// activeLeafVariant returns the last variant on the active path, or nil for
// an empty conversation.
func (c *Conversation) activeLeafVariant() *Variant {
	var last *Variant
	seen := map[NodeID]bool{}
	id := c.RootID
	for !id.IsNull() && !seen[id] {
		seen[id] = true
		node, ok := c.Nodes[id]
		if !ok {
			break
		}
		v := node.Active()
		if v == nil {
			break
		}
		last = v
		id = v.ChildID
	}
	return last
}

// AppendToActivePath adds msg as a new single-variant node after the current
// active leaf and returns the new node's id. An empty conversation gets its
// root.
func (c *Conversation) AppendToActivePath(msg *Message) NodeID {
	if c.Nodes == nil {
		c.Nodes = make(map[NodeID]*Node)
	}

	node := &Node{
		ID:       c.nodeIDFor(msg),
		Variants: []*Variant{{Message: msg}},
	}
	c.Nodes[node.ID] = node

	if leaf := c.activeLeafVariant(); leaf != nil {
		leaf.ChildID = node.ID
	} else {
		c.RootID = node.ID
	}
	c.touch()

	return node.ID
}

// GetMessageByID looks the message up across all nodes and variants.
func (c *Conversation) GetMessageByID(id MessageID) (*Message, bool) {
	_, node, ok := c.findOwner(id)
	if !ok {
		return nil, false
	}
	for _, v := range node.Variants {
		if v.Message != nil && v.Message.ID == id {
			return v.Message, true
		}
	}
	return nil, false
}

// Clone returns a deep copy, safe to hand to a UI while the original keeps
// mutating.
func (c *Conversation) Clone() *Conversation {
	return clone.Clone(c).(*Conversation)
}

func (c *Conversation) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// LoadConversationFromFile reads a conversation document and migrates any
// legacy flat history it carries.
func LoadConversationFromFile(filename string) (*Conversation, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.Migrate()
	return &c, nil
}
