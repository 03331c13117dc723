package emailsvc

import (
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/thejadex/RE-VLab/core"
)

// consoleService writes each email, MIME-encoded, to the logger instead of sending it.
type consoleService struct {
	conf       *core.Config
	from       mail.Address
	subjPrefix string
	logger     core.Logger // nil silences output

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) *consoleService {
	return &consoleService{
		conf:       conf,
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	go func() {
		for _, msg := range messages {
			svc.deliver(msg)
		}
	}()
}

// SentMessages returns a copy of the messages sent so far.
func (svc *consoleService) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		if svc.logger != nil {
			svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.Subject, err), err)
		}
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()

	if svc.logger != nil {
		svc.logger.Info(svc.mime(*msg))
	}
}

// mime renders msg as a multipart/alternative message.
func (svc *consoleService) mime(msg core.EmailMessage) string {
	var b strings.Builder
	header := func(key, value string) { b.WriteString(key + ": " + value + "\r\n") }

	header("From", svc.from.String())
	header("To", addressList(msg.To))
	if len(msg.Cc) > 0 {
		header("Cc", addressList(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		header("Bcc", addressList(msg.Bcc))
	}
	header("Subject", svc.subjPrefix+msg.Subject)
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	parts := multipart.NewWriter(&b)
	header("Content-Type", "multipart/alternative; boundary="+parts.Boundary())
	b.WriteString("\r\n")

	bodies := []struct{ kind, content string }{{"text/plain", msg.TextContent}, {"text/html", msg.HTMLContent}}
	for _, body := range bodies {
		if body.content == "" {
			continue
		}
		w, err := parts.CreatePart(textproto.MIMEHeader{"Content-Type": {body.kind + "; charset=utf-8"}})
		if err == nil {
			_, _ = w.Write([]byte(body.content + "\r\n"))
		}
	}
	_ = parts.Close()
	return b.String()
}

func addressList(addrs []mail.Address) string {
	list := make([]string, len(addrs))
	for i := range addrs {
		list[i] = addrs[i].String()
	}
	return strings.Join(list, ", ")
}

// ConsoleServiceMock delivers synchronously and prints nothing; tests read SentMessages.
type ConsoleServiceMock struct {
	*consoleService
}

func NewConsoleServiceMock(conf *core.Config) *ConsoleServiceMock {
	return &ConsoleServiceMock{consoleService: NewConsoleService(conf, nil)}
}

func (svc *ConsoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.deliver(msg)
	}
}

// Reset forgets the sent messages.
func (svc *ConsoleServiceMock) Reset() {
	svc.mu.Lock()
	svc.sent = nil
	svc.mu.Unlock()
}
