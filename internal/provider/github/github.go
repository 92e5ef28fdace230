// Package github receives github webhook http requests, validates and
// converts them to provider events and forwards them to the event
// channels of the subscribed consumers.
package github

import (
	"net/http"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
	"github.com/simplesurance/mergetrain/internal/provider"
)

const loggerName = "github-event-provider"

// Provider listens for github webhook http requests at a http-server
// handler, validates and converts the requests to events and forwards
// them to the event channels.
// Forwarding is non-blocking, when a channel is full the request is
// answered with 503 and github redelivers the event later.
type Provider struct {
	logger        *zap.Logger
	webhookSecret []byte
	chans         []chan<- *provider.Event
}

type option func(*Provider)

func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func New(eventChans []chan<- *provider.Event, opts ...option) *Provider {
	p := Provider{
		chans: eventChans,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logger == nil {
		p.logger = zap.L().Named(loggerName)
	}

	return &p
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	deliveryID := github.DeliveryID(req)
	hookType := github.WebHookType(req)

	logFields := []zap.Field{
		logfields.EventProvider("github"),
		zap.String("github.delivery_id", deliveryID),
		zap.String("github.webhook_type", hookType),
	}

	logger := p.logger.With(logFields...)

	payload, err := github.ValidatePayload(req, p.webhookSecret)
	if err != nil {
		logger.Info(
			"received invalid http request, payload validation failed",
			logfields.Event("github_http_request_validation_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)

		return
	}

	event, err := github.ParseWebHook(hookType, payload)
	if err != nil {
		logger.Info(
			"received invalid http request, parsing failed",
			logfields.Event("github_event_parsing_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)

		return
	}

	ev := provider.Event{
		JSON:       payload,
		Provider:   "github",
		DeliveryID: deliveryID,
		EventType:  hookType,
	}

	switch event := event.(type) {
	case *github.PullRequestEvent:
		ev.Action = event.GetAction()
		setRepo(&ev, event.GetRepo())
		setPullRequest(&ev, event.GetPullRequest())
		if ev.PullRequestNr == 0 {
			ev.PullRequestNr = event.GetNumber()
		}

	case *github.PullRequestReviewEvent:
		ev.Action = event.GetAction()
		setRepo(&ev, event.GetRepo())
		setPullRequest(&ev, event.GetPullRequest())

	case *github.PushEvent:
		if repo := event.GetRepo(); repo != nil {
			ev.RepositoryOwner = repo.GetOwner().GetLogin()
			ev.Repository = repo.GetName()
		}

		ev.Branch = branchRefToName(event.GetRef())
		ev.CommitID = event.GetAfter()

	case *github.StatusEvent:
		setRepo(&ev, event.GetRepo())
		ev.CommitID = event.GetSHA()

	default:
		logger.Debug(
			"ignoring event, event type is unsupported",
			logfields.Event("github_unsupported_event_received"),
		)

		return
	}

	ev.LogFields = append(logFields, eventLogFields(&ev)...)
	logger = p.logger.With(ev.LogFields...)

	for _, c := range p.chans {
		select {
		case c <- &ev:
			logger.Debug(
				"event forwarded to channel",
				logfields.Event("github_event_forwarded"),
			)

		default:
			logger.Warn(
				"event lost, forwarding event to channel would have blocked",
				logfields.Event("github_forwarding_event_failed"),
			)

			http.Error(resp, "queue full", http.StatusServiceUnavailable)

			return
		}
	}
}

func setRepo(ev *provider.Event, repo *github.Repository) {
	if repo == nil {
		return
	}

	ev.RepositoryOwner = repo.GetOwner().GetLogin()
	ev.Repository = repo.GetName()
}

func setPullRequest(ev *provider.Event, pr *github.PullRequest) {
	if pr == nil {
		return
	}

	ev.PullRequestNr = pr.GetNumber()

	if head := pr.GetHead(); head != nil {
		ev.CommitID = head.GetSHA()
		ev.Branch = head.GetRef()
	}

	if base := pr.GetBase(); base != nil {
		ev.BaseBranch = base.GetRef()
	}
}

func branchRefToName(ref string) string {
	const prefix = "refs/heads/"

	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}

	return ref
}

func eventLogFields(ev *provider.Event) []zap.Field {
	result := make([]zap.Field, 0, 6)

	if ev.RepositoryOwner != "" {
		result = append(result, logfields.RepositoryOwner(ev.RepositoryOwner))
	}

	if ev.Repository != "" {
		result = append(result, logfields.Repository(ev.Repository))
	}

	if ev.PullRequestNr != 0 {
		result = append(result, logfields.PullRequest(ev.PullRequestNr))
	}

	if ev.Branch != "" {
		result = append(result, logfields.Branch(ev.Branch))
	}

	if ev.BaseBranch != "" {
		result = append(result, logfields.BaseBranch(ev.BaseBranch))
	}

	if ev.Action != "" {
		result = append(result, zap.String("github.event_action", ev.Action))
	}

	return result
}
