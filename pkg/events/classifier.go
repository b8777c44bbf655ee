package events

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// Classifier maps one wire event to exactly one canonical Event.
//
// Implementations must be pure and total: no IO, no mutable state, and every
// (eventType, payload) pair yields an event. Payloads the classifier does not
// know map to *EventUnrecognized, never to an error or a panic. eventType is
// the value of the dialect's discriminator field, or "" when the payload had
// none.
type Classifier interface {
	Classify(metadata EventMetadata, eventType string, payload json.RawMessage) Event
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(metadata EventMetadata, eventType string, payload json.RawMessage) Event

func (f ClassifierFunc) Classify(metadata EventMetadata, eventType string, payload json.RawMessage) Event {
	return f(metadata, eventType, payload)
}

var (
	classifierRegistryOnce sync.Once
	classifierMu           sync.RWMutex
	classifierRegistry     map[string]Classifier
)

func ensureClassifierRegistry() {
	classifierRegistryOnce.Do(func() {
		classifierRegistry = map[string]Classifier{}
	})
}

// RegisterClassifier makes a classifier available under a provider name.
// Registering the same name twice is an error.
func RegisterClassifier(name string, c Classifier) error {
	ensureClassifierRegistry()

	classifierMu.Lock()
	defer classifierMu.Unlock()

	if _, ok := classifierRegistry[name]; ok {
		return errors.Errorf("classifier %q already registered", name)
	}
	classifierRegistry[name] = c

	return nil
}

// MustRegisterClassifier is RegisterClassifier for use from package init.
func MustRegisterClassifier(name string, c Classifier) {
	if err := RegisterClassifier(name, c); err != nil {
		panic(err)
	}
}

func LookupClassifier(name string) (Classifier, bool) {
	ensureClassifierRegistry()

	classifierMu.RLock()
	defer classifierMu.RUnlock()

	c, ok := classifierRegistry[name]
	return c, ok
}

// RegisteredClassifiers returns the names of all registered classifiers.
func RegisteredClassifiers() []string {
	ensureClassifierRegistry()

	classifierMu.RLock()
	defer classifierMu.RUnlock()

	names := make([]string, 0, len(classifierRegistry))
	for name := range classifierRegistry {
		names = append(names, name)
	}
	return names
}
