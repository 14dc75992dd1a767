package social

import (
	"fmt"

	socialcommand "github.com/goliatone/go-social/command"
	socialquery "github.com/goliatone/go-social/query"
)

// CommandQueryService is the operation surface the facade dispatches to.
// *core.Service satisfies it.
type CommandQueryService interface {
	socialcommand.MutatingService
	socialquery.AccountReader
	socialquery.PublishActivityReader
}

type Commands struct {
	Connect          *socialcommand.ConnectCommand
	CompleteCallback *socialcommand.CompleteCallbackCommand
	ConnectDirect    *socialcommand.ConnectDirectCommand
	Disconnect       *socialcommand.DisconnectCommand
	Publish          *socialcommand.PublishCommand
	MarkNeedsRefresh *socialcommand.MarkNeedsRefreshCommand
}

type Queries struct {
	GetAccount          *socialquery.GetAccountQuery
	ListAccounts        *socialquery.ListAccountsQuery
	ListPublishActivity *socialquery.ListPublishActivityQuery
}

// Facade bundles the command and query handlers behind one constructor so
// embedding applications wire a single value into their dispatcher.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	activityReader socialquery.PublishActivityReader
}

// WithActivityReader routes activity queries to a dedicated reader instead
// of the service, e.g. a replica-backed store.
func WithActivityReader(reader socialquery.PublishActivityReader) FacadeOption {
	return func(options *facadeOptions) {
		options.activityReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("social: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.activityReader
	if reader == nil {
		reader = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Connect:          socialcommand.NewConnectCommand(service),
		CompleteCallback: socialcommand.NewCompleteCallbackCommand(service),
		ConnectDirect:    socialcommand.NewConnectDirectCommand(service),
		Disconnect:       socialcommand.NewDisconnectCommand(service),
		Publish:          socialcommand.NewPublishCommand(service),
		MarkNeedsRefresh: socialcommand.NewMarkNeedsRefreshCommand(service),
	}
	facade.queries = Queries{
		GetAccount:          socialquery.NewGetAccountQuery(service),
		ListAccounts:        socialquery.NewListAccountsQuery(service),
		ListPublishActivity: socialquery.NewListPublishActivityQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
