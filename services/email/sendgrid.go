package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/sync/errgroup"

	"github.com/thejadex/RE-VLab/core"
)

// maxConcurrentSends bounds the Sendgrid calls of one batch (a scenario fan-out can address every student).
const maxConcurrentSends = 4

type sendgridService struct {
	conf       *core.Config
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		conf:       conf,
		client:     sendgrid.NewSendClient(conf.SendgridApiKey),
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

// SendMessages returns immediately; the batch is delivered in the background.
func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	if len(messages) == 0 {
		return
	}
	go svc.sendBatch(messages)
}

func (svc *sendgridService) sendBatch(messages []*core.EmailMessage) {
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(maxConcurrentSends)
	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			if err := msg.Render(svc.conf); err != nil {
				return errors.Wrap(err, "rendering email")
			}
			if !msg.HasRecipients() || !msg.HasContent() {
				return nil
			}
			return svc.send(*msg)
		})
	}
	if err := g.Wait(); err != nil {
		svc.logger.Error(fmt.Sprintf("sending emails: %v", err), err)
	}
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(sgEmails(msg.To)...)
	if len(msg.Cc) > 0 {
		p.AddCCs(sgEmails(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		p.AddBCCs(sgEmails(msg.Bcc)...)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddCategories("notification")

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, addr := range addrs {
		emails = append(emails, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return emails
}

func (svc *sendgridService) send(msg core.EmailMessage) error {
	res, err := svc.client.Send(svc.prepare(msg))
	if err != nil {
		return errors.Wrapf(err, "sending %q", msg.Subject)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sending %q: status %d: %s", msg.Subject, res.StatusCode, res.Body)
	}
	return nil
}
