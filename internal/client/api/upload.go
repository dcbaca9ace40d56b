package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Upload é um arquivo escolhido pelo usuário (documento ou comprovante)
type Upload struct {
	Filename string
	Data     []byte
}

// ContentType detecta o tipo pelo conteúdo, não pela extensão
func (u Upload) ContentType() string {
	return mimetype.Detect(u.Data).String()
}

func (u Upload) IsImage() bool {
	return strings.HasPrefix(u.ContentType(), "image/")
}

func (u Upload) IsPDF() bool {
	return mimetype.Detect(u.Data).Is("application/pdf")
}

func (u Upload) Size() int { return len(u.Data) }

// multipartBody monta o corpo multipart com campos simples e arquivos opcionais
func multipartBody(fields map[string]string, files map[string]*Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for field, f := range files {
		if f == nil {
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+escapeQuotes(f.Filename)+`"`)
		h.Set("Content-Type", f.ContentType())
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
