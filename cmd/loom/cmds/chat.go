package cmds

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/loom/pkg/config"
	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/inference/orchestrator"
	"github.com/go-go-golems/loom/pkg/inference/tools"
	"github.com/go-go-golems/loom/pkg/inference/tools/builtin"
	"github.com/go-go-golems/loom/pkg/prompt"
	"github.com/go-go-golems/loom/pkg/providers"
	"github.com/go-go-golems/loom/pkg/providers/factory"
	"github.com/go-go-golems/loom/pkg/store"
	"github.com/go-go-golems/loom/pkg/ui"
)

type chatFlags struct {
	provider      string
	model         string
	chatID        string
	systemPrompt  string
	maxTokens     int
	contextBudget int
	interactive   bool
	noTools       bool
	debugEvents   bool
}

func NewChatCommand() *cobra.Command {
	flags := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a prompt to a model, or chat interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			promptText := ""
			if len(args) > 0 {
				promptText = args[0]
			}
			if promptText == "" && !flags.interactive {
				return errors.New("either a prompt or --interactive is required")
			}
			return runChat(cmd.Context(), flags, promptText)
		},
	}

	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "provider table entry to use")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model name")
	cmd.Flags().StringVarP(&flags.chatID, "chat", "c", "", "chat id to continue")
	cmd.Flags().StringVar(&flags.systemPrompt, "system", "", "system prompt (template, sprig functions available)")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "maximum response tokens")
	cmd.Flags().IntVar(&flags.contextBudget, "context-budget", 0, "trim context to at most this many tokens")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "open the chat TUI")
	cmd.Flags().BoolVar(&flags.noTools, "no-tools", false, "do not offer tools to the model")
	cmd.Flags().BoolVar(&flags.debugEvents, "debug-events", false, "dump raw event payloads to stdout")

	return cmd
}

func runChat(ctx context.Context, flags *chatFlags, promptText string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	providerName := flags.provider
	if providerName == "" && settings.Chat != nil && settings.Chat.Provider != nil {
		providerName = *settings.Chat.Provider
	}

	provider, err := factory.NewStandardFactory().CreateProvider(settings, providerName)
	if err != nil {
		return err
	}
	if providerName == "" {
		providerName = provider.Name()
	}

	model := flags.model
	if model == "" && settings.Chat != nil && settings.Chat.Model != nil {
		model = *settings.Chat.Model
	}
	if model == "" {
		return errors.New("no model selected, pass --model or set chat.model in the settings")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	manager, err := buildManager(st, settings, flags, providerName, model)
	if err != nil {
		return err
	}

	router, err := events.NewEventRouter()
	if err != nil {
		return err
	}

	topic := "chat:" + manager.ChatID()
	publisher := events.NewPublisherManager()
	publisher.SubscribePublisher("chat", router.Publisher)
	publisher.SubscribePublisher(topic, router.Publisher)

	orch, err := buildOrchestrator(provider, manager, publisher, settings, flags, model)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if flags.debugEvents {
		router.AddHandler("debug-events", "chat", router.DumpRawEvents)
	}

	eg := errgroup.Group{}
	eg.Go(func() error {
		return router.Run(ctx)
	})
	defer func() {
		_ = router.Close()
		_ = eg.Wait()
	}()
	<-router.Running()

	if promptText != "" {
		if err := runOneTurn(ctx, router, orch, manager, promptText); err != nil {
			return err
		}
	}

	if flags.interactive || (promptText != "" && askContinueInChat()) {
		return runTUI(ctx, router, orch, manager, topic)
	}

	return nil
}

func buildManager(st store.Store, settings *config.Settings, flags *chatFlags, providerName string, model string) (conversation.Manager, error) {
	options := []conversation.ManagerOption{
		conversation.WithSaveFunc(st.Put),
		conversation.WithAutosave(true),
	}

	if flags.chatID != "" {
		conv, err := st.Get(flags.chatID)
		switch {
		case err == nil:
			options = append(options, conversation.WithConversation(conv))
		case errors.Is(err, store.ErrConversationNotFound):
			options = append(options, conversation.WithChatID(flags.chatID))
		default:
			return nil, err
		}
	}

	systemPrompt := flags.systemPrompt
	if systemPrompt == "" && settings.Chat != nil && settings.Chat.SystemPrompt != nil {
		systemPrompt = *settings.Chat.SystemPrompt
	}
	if systemPrompt != "" {
		rendered, err := prompt.Render(systemPrompt, prompt.NewData(time.Now(), providerName, model))
		if err != nil {
			return nil, err
		}
		options = append(options, conversation.WithSystemPrompt(rendered))
	}

	return conversation.NewManager(options...), nil
}

func buildOrchestrator(provider providers.Provider, manager conversation.Manager, sink events.EventSink, settings *config.Settings, flags *chatFlags, model string) (*orchestrator.Orchestrator, error) {
	options := []orchestrator.Option{
		orchestrator.WithModel(model),
		orchestrator.WithSinks(sink),
		orchestrator.WithLogger(log.With().Str("chat_id", manager.ChatID()).Logger()),
	}

	chat := settings.Chat
	if flags.maxTokens > 0 {
		options = append(options, orchestrator.WithMaxTokens(flags.maxTokens))
	} else if chat != nil && chat.MaxResponseTokens != nil {
		options = append(options, orchestrator.WithMaxTokens(*chat.MaxResponseTokens))
	}
	if chat != nil && chat.Temperature != nil {
		options = append(options, orchestrator.WithTemperature(*chat.Temperature))
	}
	if chat != nil && chat.TopP != nil {
		options = append(options, orchestrator.WithTopP(*chat.TopP))
	}
	if chat != nil && len(chat.Stop) > 0 {
		options = append(options, orchestrator.WithStopSequences(chat.Stop))
	}
	if flags.contextBudget > 0 {
		options = append(options, orchestrator.WithTokenBudget(flags.contextBudget))
	}

	toolConfig := settings.ToolConfig()
	if flags.noTools {
		toolConfig = toolConfig.WithEnabled(false)
	}
	options = append(options, orchestrator.WithToolConfig(toolConfig))

	if toolConfig.Enabled {
		registry := tools.NewInMemoryRegistry()
		if err := builtin.Register(registry); err != nil {
			return nil, err
		}
		options = append(options, orchestrator.WithTools(registry, tools.NewDefaultExecutor(toolConfig)))
	}

	return orchestrator.New(provider, manager, options...), nil
}

// runOneTurn appends the prompt as a user message and streams the answer to
// stdout.
func runOneTurn(ctx context.Context, router *events.EventRouter, orch *orchestrator.Orchestrator, manager conversation.Manager, promptText string) error {
	manager.AppendMessages(conversation.NewChatMessage(conversation.RoleUser, promptText))

	router.AddHandler("printer", "chat", events.TextPrinterFunc("", os.Stdout))
	if err := router.RunHandlers(ctx); err != nil {
		return err
	}

	_, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "\ninterrupted")
			return nil
		}
		return err
	}
	fmt.Println()

	return nil
}

// askContinueInChat offers to keep going in the TUI after a one-shot turn.
// Non-terminal stdin skips the question, so piped usage stays scriptable.
func askContinueInChat() bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return false
	}

	asker := &input.UI{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
	answer, err := asker.Ask("Continue in interactive chat? [y/N]", &input.Options{
		Default:  "n",
		Required: false,
	})
	if err != nil {
		return false
	}
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}

func runTUI(ctx context.Context, router *events.EventRouter, orch *orchestrator.Orchestrator, manager conversation.Manager, topic string) error {
	backend := ui.NewOrchestratorBackend(orch)

	programOptions := []tea.ProgramOption{
		tea.WithMouseCellMotion(),
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		programOptions = append(programOptions, tea.WithAltScreen())
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		tty, err := ui.OpenTTY()
		if err != nil {
			return errors.Wrap(err, "could not open terminal for interactive chat")
		}
		defer func() {
			_ = tty.Close()
		}()
		programOptions = append(programOptions, tea.WithInput(tty))
	}

	p := tea.NewProgram(ui.InitialModel(manager, backend), programOptions...)

	router.AddHandler("ui", topic, ui.EventForwardFunc(p))
	if err := router.RunHandlers(ctx); err != nil {
		return err
	}

	_, err := p.Run()
	return err
}
