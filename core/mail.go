package core

import (
	"bytes"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/thejadex/RE-VLab/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates tmplCache
	tmplErr   error
	tmplInit  sync.Once
)

// executor is satisfied by both *text/template.Template and *html/template.Template.
type executor interface {
	Execute(w io.Writer, data interface{}) error
}

type (
	tmplCacheEntry map[string]executor        // {ext: template}
	tmplCache      map[string]tmplCacheEntry // {name: entry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// execute renders the message's template with the given extension. A missing template renders as "".
func (m *EmailMessage) execute(ext string, data ContextData) (string, error) {
	tmpl, ok := templates[m.TemplateName][ext]
	if !ok {
		return "", nil
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render fills TextContent and HTMLContent from BodyStr or the named templates.
func (m *EmailMessage) Render(conf *Config) error {
	if m.TemplateName != "" {
		if err := ParseEmailTemplates(); err != nil {
			return err
		}
	}
	data := ContextData{
		AppName:         conf.AppName,
		FrontendBaseURL: conf.FrontendBaseURL,
		Data:            m.TemplateData,
	}
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	var err error
	if m.BodyStr == "" {
		if m.TextContent, err = m.execute(".txt", data); err != nil {
			return errors.Wrap(err, "rendering text")
		}
	}
	m.HTMLContent, err = m.execute(".gohtml", data)
	return errors.Wrap(err, "rendering html")
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseEmailTemplates parses the embedded email templates once.
func ParseEmailTemplates() error {
	tmplInit.Do(func() {
		templates, tmplErr = parseTemplates(appfs.FS)
	})
	return tmplErr
}

func parseTemplates(fsys fs.FS) (tmplCache, error) {
	cache := make(tmplCache)

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		base := path.Join(emailTemplatesDir, "_base"+ext)

		var tmpl executor
		switch ext {
		case ".txt":
			t, perr := texttmpl.ParseFS(fsys, base, fp)
			if perr != nil {
				return nil, errors.Wrapf(perr, "parsing %s", fp)
			}
			tmpl = t.Option("missingkey=error")
		case ".gohtml":
			t, perr := htmltmpl.ParseFS(fsys, base, fp)
			if perr != nil {
				return nil, errors.Wrapf(perr, "parsing %s", fp)
			}
			tmpl = t.Option("missingkey=error")
		default:
			continue
		}

		name := strings.TrimSuffix(fname, ext)
		if cache[name] == nil {
			cache[name] = make(tmplCacheEntry)
		}
		cache[name][ext] = tmpl
	}
	return cache, nil
}
