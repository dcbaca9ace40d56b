package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthExpired cobre o 401 em chamadas autenticadas e o token ausente/expirado
var ErrAuthExpired = errors.New("session expired")

// Textos genéricos exibidos quando o backend não manda detalhe
const (
	MsgGeneric     = "Ocurrió un error inesperado"
	MsgNetwork     = "No se pudo conectar con el servidor"
	MsgAuthExpired = "Tu sesión expiró, inicia sesión nuevamente"
)

// ServerError é uma resposta não-2xx do backend
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend http %d", e.Status)
	}
	return fmt.Sprintf("backend http %d: %s", e.Status, e.Detail)
}

// NetworkError indica que a requisição não completou
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// Message converte qualquer erro no texto que vai para a notificação
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAuthExpired) {
		return MsgAuthExpired
	}
	var se *ServerError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return MsgNetwork
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return MsgGeneric
}

// IsInsufficientFunds reconhece a rejeição de retiro por saldo
func IsInsufficientFunds(err error) bool {
	var se *ServerError
	if !errors.As(err, &se) {
		return false
	}
	d := strings.ToLower(se.Detail)
	return strings.Contains(d, "insuficiente") || strings.Contains(d, "insufficient")
}

// IsNetwork indica falha de transporte (sem resposta do backend)
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
