package conversation

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadMessagesFromFile reads a list of messages from a JSON or YAML file,
// used to seed a fresh conversation. JSON files carry full messages (ids,
// timestamps, content types). YAML files use the shorthand seed format, a
// list of role/text pairs.
func LoadMessagesFromFile(filename string) ([]*Message, error) {
	switch {
	case strings.HasSuffix(filename, ".json"):
		return loadMessagesFromJSON(filename)
	case strings.HasSuffix(filename, ".yaml"), strings.HasSuffix(filename, ".yml"):
		return loadMessagesFromYAML(filename)
	default:
		return nil, errors.Errorf("unsupported message file format: %s", filename)
	}
}

func loadMessagesFromJSON(filename string) ([]*Message, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var messages []*Message
	if err := json.NewDecoder(f).Decode(&messages); err != nil {
		return nil, errors.Wrapf(err, "could not decode messages from %s", filename)
	}

	return messages, nil
}

type messageSeed struct {
	Role   Role   `yaml:"role"`
	Text   string `yaml:"text"`
	Prompt string `yaml:"prompt,omitempty"`
}

func loadMessagesFromYAML(filename string) ([]*Message, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var seeds []messageSeed
	if err := yaml.NewDecoder(f).Decode(&seeds); err != nil {
		return nil, errors.Wrapf(err, "could not decode messages from %s", filename)
	}

	messages := make([]*Message, 0, len(seeds))
	for _, seed := range seeds {
		text := seed.Text
		if text == "" {
			text = seed.Prompt
		}
		role := seed.Role
		if role == "" {
			role = RoleUser
		}
		messages = append(messages, NewChatMessage(role, text))
	}

	return messages, nil
}
