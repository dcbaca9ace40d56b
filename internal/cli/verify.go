package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/verification"
)

// intervalo das checagens locais do estado do assistente no watch
const watchStep = 100 * time.Millisecond

var stateText = map[verification.State]string{
	verification.New:             "Sin verificar. Prepara una foto o PDF de tu documento.",
	verification.PhotoReady:      "Documento listo para enviar.",
	verification.UploadedPending: "Documento enviado, en revisión.",
	verification.Verified:        "Cuenta verificada.",
}

func (a *App) verify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	w := a.wizard()
	defer w.Close()

	st, err := w.Mount(ctx)
	if errors.Is(err, api.ErrAuthExpired) {
		a.notes.Notify(notify.Error, api.MsgAuthExpired)
		return err
	}
	if err != nil {
		a.notes.Notify(notify.Error, api.Message(err))
	}

	switch args[0] {
	case "status":
		a.ui.Println(stateText[st])
		return err
	case "ready":
		if aerr := w.AcknowledgePhoto(); aerr != nil {
			a.ui.Println(stateText[st])
			return aerr
		}
		a.ui.Println("Listo. Envía el documento con `betref verify submit <archivo>`.")
		return nil
	case "submit":
		return a.submitDocument(ctx, w, args[1:])
	case "watch":
		return a.watchVerification(ctx, w)
	}
	return errUsage
}

func (a *App) submitDocument(ctx context.Context, w *verification.Wizard, args []string) error {
	fs := newFlags("verify submit")
	watch := fs.Bool("watch", false, "esperar la revisión")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		a.notes.Notify(notify.Error, "No se pudo leer el archivo")
		return fmt.Errorf("read document: %w", err)
	}

	if err := w.AcknowledgePhoto(); err != nil {
		a.ui.Println(stateText[w.State()])
		return err
	}
	if err := w.Submit(ctx, &api.Upload{Filename: filepath.Base(path), Data: data}); err != nil {
		return err
	}
	a.log.Info("verification submitted", zap.String("file", filepath.Base(path)), zap.Int("bytes", len(data)))
	if *watch {
		return a.watchVerification(ctx, w)
	}
	// o refetch de confirmação tira o marcador local assim que o servidor enxerga o pedido
	w.WaitConfirmed(ctx)
	return nil
}

// watchVerification segue o poller do assistente até sair de UPLOADED_PENDING
func (a *App) watchVerification(ctx context.Context, w *verification.Wizard) error {
	st := w.State()
	if st != verification.UploadedPending {
		a.ui.Println(stateText[st])
		return nil
	}
	a.ui.Println("Esperando la revisión (Ctrl+C para salir)...")

	t := time.NewTicker(watchStep)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if a.expired.Load() {
				a.notes.Notify(notify.Error, api.MsgAuthExpired)
				return api.ErrAuthExpired
			}
			if cur := w.State(); cur != verification.UploadedPending {
				a.ui.Println(stateText[cur])
				return nil
			}
		}
	}
}
