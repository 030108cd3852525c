package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/applyflow/applyflow/internal/events"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/stages"
	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type taskEnqueuer interface {
	Enqueue(ctx context.Context, queue string, payload any) error
}

// Notifier is the human end of the pipeline: it announces postings that are
// ready for review, surfaces compliance failures, and accepts the /redraft
// command that re-enters a stuck posting into drafting. Re-entry is
// deliberately manual; the pipeline never retries a compliance failure on
// its own.
type Notifier struct {
	api    *botApi.BotAPI
	chatID int64
	bus    EventBus.Bus
	tasks  taskEnqueuer
}

func NewNotifier(token string, chatID int64, bus EventBus.Bus, tasks taskEnqueuer) (*Notifier, error) {

	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Infof("Authorized on account %s", api.Self.UserName)

	err = botApi.SetLogger(log.StandardLogger())
	if err != nil {
		return nil, err
	}

	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if tasks == nil {
		return nil, errors.New("task enqueuer is nil")
	}

	notifier := &Notifier{api: api, chatID: chatID, bus: bus, tasks: tasks}

	if err = bus.Subscribe(events.PostingReadyForReviewTopic, notifier.onReadyForReview); err != nil {
		return nil, err
	}
	if err = bus.Subscribe(events.ComplianceFailedTopic, notifier.onComplianceFailed); err != nil {
		return nil, err
	}
	return notifier, nil
}

func (n *Notifier) Run() {

	updateConfig := botApi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := n.api.GetUpdatesChan(updateConfig)

	for update := range updates {

		if update.Message == nil {
			continue
		}

		go n.handleMessage(update.Message)
	}
}

func (n *Notifier) Stop() {
	n.api.StopReceivingUpdates()
}

func (n *Notifier) handleMessage(message *botApi.Message) {

	switch message.Command() {
	case "redraft":
		n.handleRedraft(message)
	case "start", "help":
		n.send(botApi.NewMessage(message.Chat.ID,
			"I announce postings ready for review and compliance failures.\n"+
				"/redraft <postingID> re-runs drafting and verification for a failed posting."))
	default:
		n.send(botApi.NewMessage(message.Chat.ID, "Unknown command, try /help"))
	}
}

func (n *Notifier) handleRedraft(message *botApi.Message) {

	postingID, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	if err != nil {
		n.send(botApi.NewMessage(message.Chat.ID, "Usage: /redraft <postingID>"))
		return
	}

	err = n.tasks.Enqueue(context.Background(), stages.ReentryStage.Queue(),
		stages.PostingTask{PostingID: postingID})
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to enqueue redraft for posting %v: %v", postingID, err)
		n.send(botApi.NewMessage(message.Chat.ID, "Failed to queue the redraft, check the logs"))
		return
	}

	n.send(botApi.NewMessage(message.Chat.ID,
		fmt.Sprintf("Posting %v queued for redrafting and verification", postingID)))
}

func (n *Notifier) onReadyForReview(event events.PostingReadyForReview) {
	n.send(botApi.NewMessage(n.chatID, fmt.Sprintf(
		"Application for %q at %v is ready for review (posting %v)\n%v",
		event.Title, event.Company, event.PostingID, event.URL)))
}

func (n *Notifier) onComplianceFailed(event events.ComplianceFailed) {
	n.send(botApi.NewMessage(n.chatID, fmt.Sprintf(
		"Compliance failed for %q at %v (posting %v):\n%v\nFix the materials and run /redraft %v",
		event.Title, event.Company, event.PostingID, strings.Join(event.Flags, "\n"), event.PostingID)))
}

func (n *Notifier) send(message botApi.Chattable) {
	if _, err := n.api.Send(message); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("failed to send telegram message: %v", err)
	}
}
