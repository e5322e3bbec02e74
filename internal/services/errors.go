package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies a service failure.
type Kind string

const (
	KindInvalidID        Kind = "invalid-id"
	KindValidation       Kind = "validation-error"
	KindNotFound         Kind = "not-found"
	KindMalformedPayload Kind = "malformed-payload"
	KindTimeout          Kind = "timeout"
	KindInternal         Kind = "internal-error"
)

// User-facing messages.
const (
	MsgInvalidID     = "ID do produto inválido"
	MsgNotFound      = "Produto não encontrado"
	MsgNameRequired  = "Nome do produto é obrigatório"
	MsgNameEmpty     = "Nome do produto não pode estar vazio"
	MsgInvalidPrice  = "Preço deve ser um número positivo"
	MsgInvalidJSON   = "JSON inválido"
	MsgInvalidForm   = "Dados do formulário inválidos"
	MsgTimeout       = "Timeout na requisição"
	MsgRequestFailed = "Erro na requisição"
	MsgRouteNotFound = "Rota não encontrada"
	MsgInternal      = "Erro interno do servidor"
	MsgListFailed    = "Erro ao buscar produtos"
	MsgGetFailed     = "Erro ao buscar produto"
	MsgCreateFailed  = "Erro ao cadastrar produto"
	MsgUpdateFailed  = "Erro ao atualizar produto"
	MsgDeleteFailed  = "Erro ao deletar produto"
	MsgUpdated       = "Produto atualizado com sucesso"
	MsgDeleted       = "Produto deletado com sucesso"
)

// Error is returned by every ProductService operation that fails.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalidID, KindValidation, KindMalformedPayload:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindTimeout:
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// AsError extracts a service error from err.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	se, ok := AsError(err)
	return ok && se.Kind == kind
}
