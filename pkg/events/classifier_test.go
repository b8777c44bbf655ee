package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierRegistry(t *testing.T) {
	c := ClassifierFunc(func(md EventMetadata, eventType string, payload json.RawMessage) Event {
		return NewUnrecognizedEvent(md, eventType, payload)
	})

	// the registry is process global, make the name unique
	name := "test-classifier-" + uuid.NewString()
	require.NoError(t, RegisterClassifier(name, c))

	err := RegisterClassifier(name, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	got, ok := LookupClassifier(name)
	require.True(t, ok)
	ev := got.Classify(EventMetadata{}, "x", json.RawMessage(`{}`))
	assert.Equal(t, EventTypeUnrecognized, ev.Type())

	_, ok = LookupClassifier("never-registered")
	assert.False(t, ok)

	assert.Contains(t, RegisteredClassifiers(), name)
}
