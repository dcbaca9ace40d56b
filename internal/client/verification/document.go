package verification

import (
	"errors"

	"github.com/radieske/betref-client/internal/client/api"
)

var (
	ErrNoFile          = errors.New("no document attached")
	ErrUnsupportedFile = errors.New("document must be an image or a pdf")
)

// ValidationError bloqueia o envio antes da rede
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "verification: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) UserMessage() string {
	if errors.Is(e.Err, ErrNoFile) {
		return "Adjunta una foto o PDF de tu documento"
	}
	return "El documento debe ser una imagen o un PDF"
}

// ValidateDocument aceita imagem ou PDF, sem limite de tamanho nesta etapa
func ValidateDocument(f *api.Upload) error {
	if f == nil || f.Size() == 0 {
		return &ValidationError{Err: ErrNoFile}
	}
	if !f.IsImage() && !f.IsPDF() {
		return &ValidationError{Err: ErrUnsupportedFile}
	}
	return nil
}
