package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// TextPrinterFunc returns a watermill handler that renders an event stream as
// plain text, the way the CLI chat loop displays it. name is printed once
// before the first text chunk, pass "" to disable.
func TextPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true
	inThinking := false

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Error().Err(err).Str("message_id", msg.UUID).Msg("could not decode event")
			return nil
		}

		switch p_ := e.(type) {
		case *EventError:
			_, err = fmt.Fprintf(w, "\nerror: %s\n", p_.ErrorString)
			if err != nil {
				return err
			}

		case *EventPartial:
			if isFirst && name != "" {
				isFirst = false
				_, err = fmt.Fprintf(w, "\n%s: \n", name)
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			if err != nil {
				return err
			}

		case *EventThinkingStart:
			inThinking = true
			_, err = fmt.Fprintf(w, "\n--- thinking ---\n")
			if err != nil {
				return err
			}

		case *EventPartialThinking:
			if !inThinking {
				break
			}
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			if err != nil {
				return err
			}

		case *EventThinkingDone:
			if !inThinking {
				break
			}
			inThinking = false
			status := p_.Status
			if status == "" {
				status = fmt.Sprintf("thought for %.0f seconds", p_.DurationSeconds)
			}
			_, err = fmt.Fprintf(w, "\n--- %s ---\n", status)
			if err != nil {
				return err
			}

		case *EventToolCall:
			v_, err := yaml.Marshal(p_.ToolCall)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "\n%s\n", v_)
			if err != nil {
				return err
			}

		case *EventToolResult:
			v_, err := yaml.Marshal(p_.ToolResult)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s\n", v_)
			if err != nil {
				return err
			}

		case *EventFinal:
			if !strings.HasSuffix(p_.Text, "\n") {
				_, err = fmt.Fprintf(w, "\n")
				if err != nil {
					return err
				}
			}

		case *EventStatus, *EventMessagesAdded, *EventUnrecognized:
		}

		return nil
	}
}
