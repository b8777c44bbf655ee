package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateBuildsSingleVariantChain(t *testing.T) {
	c := NewConversation("chat-1")
	c.Messages = []*Message{
		NewChatMessage(RoleUser, "hello"),
		NewChatMessage(RoleAssistant, "hi there"),
		NewChatMessage(RoleUser, "how are you?"),
	}

	c.Migrate()

	require.Len(t, c.Nodes, 3)
	require.False(t, c.RootID.IsNull())
	require.Empty(t, c.Messages)

	for _, node := range c.Nodes {
		require.Len(t, node.Variants, 1)
		require.Equal(t, 0, node.ActiveVariant)
	}

	assert.Equal(t, []string{"hello", "hi there", "how are you?"}, flattenTexts(c))
}

func TestMigrateIsIdempotent(t *testing.T) {
	c := NewConversation("chat-1")
	c.Messages = []*Message{
		NewChatMessage(RoleUser, "a"),
		NewChatMessage(RoleAssistant, "b"),
	}

	c.Migrate()
	root := c.RootID
	texts := flattenTexts(c)

	c.Migrate()

	assert.Equal(t, root, c.RootID)
	assert.Len(t, c.Nodes, 2)
	assert.Equal(t, texts, flattenTexts(c))
}

func TestMigrateLeavesTreeDocumentsAlone(t *testing.T) {
	c := seedConversation(t, "a", "b")
	nodes := len(c.Nodes)

	// a stray legacy list on an already migrated document must not be folded in
	c.Messages = []*Message{NewChatMessage(RoleUser, "stale")}
	c.Migrate()

	assert.Len(t, c.Nodes, nodes)
	assert.Equal(t, []string{"a", "b"}, flattenTexts(c))
}

func TestCreateBranchAppendsVariant(t *testing.T) {
	c := seedConversation(t, "question", "answer one")
	nodeID, ok := c.FindNode(lastMessage(t, c).ID)
	require.True(t, ok)

	original := c.Nodes[nodeID].Variants[0]

	branched, err := c.CreateBranch(nodeID, NewChatMessage(RoleAssistant, "answer two"))
	require.NoError(t, err)
	assert.Equal(t, nodeID, branched)

	node := c.Nodes[nodeID]
	require.Len(t, node.Variants, 2)
	assert.Same(t, original, node.Variants[0])
	assert.Equal(t, "answer one", node.Variants[0].Message.Content.String())
	assert.Equal(t, 1, node.ActiveVariant)
	assert.Equal(t, []string{"question", "answer two"}, flattenTexts(c))
}

func TestCreateBranchUnknownNode(t *testing.T) {
	c := seedConversation(t, "question")

	_, err := c.CreateBranch(NewNodeID(), NewChatMessage(RoleAssistant, "answer"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestSwitchVariantChangesActivePath(t *testing.T) {
	c := seedConversation(t, "question", "answer one")
	nodeID, _ := c.FindNode(lastMessage(t, c).ID)

	_, err := c.CreateBranch(nodeID, NewChatMessage(RoleAssistant, "answer two"))
	require.NoError(t, err)

	// continuation under the second variant
	c.AppendToActivePath(NewChatMessage(RoleUser, "follow-up on two"))
	assert.Equal(t, []string{"question", "answer two", "follow-up on two"}, flattenTexts(c))

	require.NoError(t, c.SwitchVariant(nodeID, 0))
	assert.Equal(t, []string{"question", "answer one"}, flattenTexts(c))

	info, err := c.BranchInfo(nodeID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.CurrentVariantIndex)
	assert.Equal(t, 2, info.Total)
	assert.True(t, info.HasNext)
	assert.False(t, info.HasPrevious)

	// the second variant's subtree is still there
	require.NoError(t, c.SwitchVariant(nodeID, 1))
	assert.Equal(t, []string{"question", "answer two", "follow-up on two"}, flattenTexts(c))
}

func TestSwitchVariantOutOfRange(t *testing.T) {
	c := seedConversation(t, "question", "answer")
	nodeID, _ := c.FindNode(lastMessage(t, c).ID)

	err := c.SwitchVariant(nodeID, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	assert.Equal(t, 0, c.Nodes[nodeID].ActiveVariant)

	err = c.SwitchVariant(nodeID, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))

	err = c.SwitchVariant(NewNodeID(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestDeleteMessageSplicesChild(t *testing.T) {
	c := seedConversation(t, "first", "second", "third")
	ids := c.ActivePathIDs()
	require.Len(t, ids, 3)

	middle := c.Nodes[ids[1]].Active().Message.ID
	require.NoError(t, c.DeleteMessage(middle))

	assert.Equal(t, []string{"first", "third"}, flattenTexts(c))
	assert.Len(t, c.Nodes, 2)
	assert.Equal(t, ids[2], c.Nodes[ids[0]].Active().ChildID)
}

func TestDeleteMessageAtRoot(t *testing.T) {
	c := seedConversation(t, "first", "second")
	ids := c.ActivePathIDs()

	root := c.Nodes[ids[0]].Active().Message.ID
	require.NoError(t, c.DeleteMessage(root))

	assert.Equal(t, ids[1], c.RootID)
	assert.Equal(t, []string{"second"}, flattenTexts(c))
}

func TestDeleteMessageRefusesBranchPoints(t *testing.T) {
	c := seedConversation(t, "question", "answer one")
	nodeID, _ := c.FindNode(lastMessage(t, c).ID)
	_, err := c.CreateBranch(nodeID, NewChatMessage(RoleAssistant, "answer two"))
	require.NoError(t, err)

	before := flattenTexts(c)

	err = c.DeleteMessage(c.Nodes[nodeID].Variants[0].Message.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCannotDeleteBranchPoint))

	node := c.Nodes[nodeID]
	require.NotNil(t, node)
	assert.Len(t, node.Variants, 2)
	assert.Equal(t, 1, node.ActiveVariant)
	assert.Equal(t, before, flattenTexts(c))
}

func TestDeleteMessageUnknown(t *testing.T) {
	c := seedConversation(t, "question")

	err := c.DeleteMessage(NewMessageID())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestAppendExtendsActiveVariant(t *testing.T) {
	c := seedConversation(t, "question", "answer one")
	nodeID, _ := c.FindNode(lastMessage(t, c).ID)
	_, err := c.CreateBranch(nodeID, NewChatMessage(RoleAssistant, "answer two"))
	require.NoError(t, err)

	require.NoError(t, c.SwitchVariant(nodeID, 0))
	c.AppendToActivePath(NewChatMessage(RoleUser, "follow-up on one"))

	assert.Equal(t, []string{"question", "answer one", "follow-up on one"}, flattenTexts(c))
	assert.True(t, c.Nodes[nodeID].Variants[1].ChildID.IsNull())
}

func TestConversationJSONRoundTrip(t *testing.T) {
	c := seedConversation(t, "question", "answer one")
	c.Title = "branching test"
	nodeID, _ := c.FindNode(lastMessage(t, c).ID)
	_, err := c.CreateBranch(nodeID, NewChatMessage(RoleAssistant, "answer two"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "conversation.json")
	require.NoError(t, c.SaveToFile(path))

	loaded, err := LoadConversationFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, c.ID, loaded.ID)
	assert.Equal(t, c.Title, loaded.Title)
	assert.Equal(t, c.RootID, loaded.RootID)
	assert.Len(t, loaded.Nodes, len(c.Nodes))
	assert.Equal(t, flattenTexts(c), flattenTexts(loaded))

	node := loaded.Nodes[nodeID]
	require.NotNil(t, node)
	assert.Equal(t, 1, node.ActiveVariant)
	assert.Len(t, node.Variants, 2)
}

func TestLoadLegacyDocumentMigrates(t *testing.T) {
	doc := map[string]interface{}{
		"id": "legacy-chat",
		"messages": []map[string]interface{}{
			{
				"id":      NewMessageID().String(),
				"content": map[string]interface{}{"role": "user", "text": "old question"},
			},
			{
				"id":      NewMessageID().String(),
				"content": map[string]interface{}{"role": "assistant", "text": "old answer"},
			},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	loaded, err := LoadConversationFromFile(path)
	require.NoError(t, err)

	assert.Empty(t, loaded.Messages)
	assert.Len(t, loaded.Nodes, 2)
	assert.Equal(t, []string{"old question", "old answer"}, flattenTexts(loaded))
}

func TestCloneIsDeep(t *testing.T) {
	c := seedConversation(t, "question", "answer")
	cloned := c.Clone()

	nodeID, _ := c.FindNode(lastMessage(t, c).ID)
	_, err := c.CreateBranch(nodeID, NewChatMessage(RoleAssistant, "other answer"))
	require.NoError(t, err)

	assert.Equal(t, []string{"question", "answer"}, flattenTexts(cloned))
	assert.Len(t, cloned.Nodes[nodeID].Variants, 1)
}

func seedConversation(t *testing.T, texts ...string) *Conversation {
	t.Helper()
	c := NewConversation("chat-test")
	role := RoleUser
	for _, text := range texts {
		c.AppendToActivePath(NewChatMessage(role, text))
		if role == RoleUser {
			role = RoleAssistant
		} else {
			role = RoleUser
		}
	}
	return c
}

func lastMessage(t *testing.T, c *Conversation) *Message {
	t.Helper()
	thread := c.Flatten()
	require.NotEmpty(t, thread)
	return thread[len(thread)-1]
}

func flattenTexts(c *Conversation) []string {
	var texts []string
	for _, msg := range c.Flatten() {
		texts = append(texts, msg.Content.String())
	}
	return texts
}
