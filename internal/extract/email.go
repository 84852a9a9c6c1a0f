package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// htmlText renders an HTML body as markdown after stripping active content.
type htmlText struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

func newHTMLText() *htmlText {
	return &htmlText{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (h *htmlText) convert(html string) string {
	clean := h.policy.Sanitize(html)
	out, err := h.md.ConvertString(clean)
	if err != nil || strings.TrimSpace(out) == "" {
		return strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(html))
	}
	return strings.TrimSpace(out)
}

func joinSubjectBody(subject, body string) string {
	subject, body = strings.TrimSpace(subject), strings.TrimSpace(body)
	switch {
	case subject == "":
		return body
	case body == "":
		return subject
	}
	return subject + "\n\n" + body
}

// emlParser reads an RFC 5322 message. text/plain wins over text/html;
// attachments are ignored.
func emlParser(h *htmlText, logger *slog.Logger) ParserFunc {
	return func(ctx context.Context, data []byte) (string, error) {
		msg, err := mail.ReadMessage(bytes.NewReader(data))
		if err != nil {
			return "", parseErr("eml", err)
		}
		subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
		if err != nil {
			subject = msg.Header.Get("Subject")
		}

		var bodies emailBodies
		if err := bodies.collect(msg.Header, msg.Body, 0); err != nil {
			return "", parseErr("eml", err)
		}
		body := bodies.plain
		if strings.TrimSpace(body) == "" && bodies.html != "" {
			body = h.convert(bodies.html)
			logger.Debug("extract.eml.html_body", "chars", len(body))
		}
		return joinSubjectBody(subject, body), nil
	}
}

// header is satisfied by both mail.Header and textproto.MIMEHeader.
type header interface {
	Get(key string) string
}

type emailBodies struct {
	plain string
	html  string
}

const maxMIMEDepth = 8

func (b *emailBodies) collect(h header, r io.Reader, depth int) error {
	if depth > maxMIMEDepth {
		return errors.New("MIME nesting too deep")
	}
	ctype := h.Get("Content-Type")
	if ctype == "" {
		ctype = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(ctype)
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}
	if disp, _, _ := mime.ParseMediaType(h.Get("Content-Disposition")); disp == "attachment" {
		return nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("multipart: %w", err)
			}
			if err := b.collect(part.Header, part, depth+1); err != nil {
				return err
			}
		}
	}

	if mediaType != "text/plain" && mediaType != "text/html" {
		return nil
	}
	raw, err := io.ReadAll(transferDecoder(h.Get("Content-Transfer-Encoding"), r))
	if err != nil {
		return fmt.Errorf("read %s body: %w", mediaType, err)
	}
	text, err := decodeCharset(params["charset"], raw)
	if err != nil {
		return err
	}
	switch {
	case mediaType == "text/plain" && b.plain == "":
		b.plain = text
	case mediaType == "text/html" && b.html == "":
		b.html = text
	}
	return nil
}

func transferDecoder(enc string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

var charsets = map[string]encoding.Encoding{
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
}

func decodeCharset(charset string, raw []byte) (string, error) {
	if enc, ok := charsets[strings.ToLower(charset)]; ok {
		out, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("%s body: %w", charset, err)
		}
		return string(out), nil
	}
	text, _, err := DecodeText(raw)
	return text, err
}

// Outlook property streams, at the root of the compound file.
const (
	msgSubjectUnicode = "__substg1.0_0037001F"
	msgSubjectAnsi    = "__substg1.0_0037001E"
	msgBodyUnicode    = "__substg1.0_1000001F"
	msgBodyAnsi       = "__substg1.0_1000001E"
	msgBodyHTML       = "__substg1.0_10130102"
)

// msgParser reads an Outlook .msg compound file: subject and plain body,
// falling back to the HTML body.
func msgParser(h *htmlText) ParserFunc {
	return func(ctx context.Context, data []byte) (string, error) {
		doc, err := mscfb.New(bytes.NewReader(data))
		if err != nil {
			return "", parseErr("msg", err)
		}

		streams, err := msgStreams(doc.Next)
		if err != nil {
			return "", parseErr("msg", err)
		}
		if len(streams) == 0 {
			return "", parseErr("msg", errors.New("no subject or body stream"))
		}

		subject := msgString(streams, msgSubjectUnicode, msgSubjectAnsi)
		body := msgString(streams, msgBodyUnicode, msgBodyAnsi)
		if strings.TrimSpace(body) == "" {
			if raw, ok := streams[msgBodyHTML]; ok {
				txt, _, _ := DecodeText(raw)
				body = h.convert(txt)
			}
		}
		return joinSubjectBody(subject, body), nil
	}
}

// msgStreams collects the root-level property streams. Only io.EOF ends the
// walk; any other error means the compound file is damaged.
func msgStreams(next func() (*mscfb.File, error)) (map[string][]byte, error) {
	streams := make(map[string][]byte)
	for {
		entry, err := next()
		if errors.Is(err, io.EOF) {
			return streams, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read entry: %w", err)
		}
		if len(entry.Path) != 0 {
			continue // attachments and recipients live in sub-storages
		}
		switch entry.Name {
		case msgSubjectUnicode, msgSubjectAnsi, msgBodyUnicode, msgBodyAnsi, msgBodyHTML:
			buf, err := io.ReadAll(entry)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", entry.Name, err)
			}
			streams[entry.Name] = buf
		}
	}
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func msgString(streams map[string][]byte, unicodeName, ansiName string) string {
	if raw, ok := streams[unicodeName]; ok {
		if out, err := utf16le.NewDecoder().Bytes(raw); err == nil {
			return strings.TrimRight(string(out), "\x00")
		}
	}
	if raw, ok := streams[ansiName]; ok {
		txt, _, _ := DecodeText(bytes.TrimRight(raw, "\x00"))
		return txt
	}
	return ""
}
