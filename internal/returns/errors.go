package returns

import (
	"errors"
	"fmt"
)

// Kind classe les erreurs pour que l'API sache comment les présenter
type Kind int

const (
	KindValidation   Kind = iota + 1 // saisie invalide, affichée sur le formulaire
	KindPrecondition                 // transition depuis un mauvais statut
	KindIntegration                  // datastore / courier / stockage en échec, l'utilisateur peut réessayer
	KindNotFound                     // slug ou id inconnu
	KindForbidden                    // mauvais rôle
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindIntegration:
		return "integration"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	}
	return "unknown"
}

type Error struct {
	Kind   Kind
	Op     string
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is permet errors.Is(err, returns.ErrPrecondition) et consorts
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrPrecondition = &Error{Kind: KindPrecondition}
	ErrIntegration  = &Error{Kind: KindIntegration}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
)

func validationError(op string, fields map[string]string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: "données invalides", Fields: fields}
}

func preconditionError(op, msg string) error {
	return &Error{Kind: KindPrecondition, Op: op, Msg: msg}
}

func integrationError(op, msg string, err error) error {
	return &Error{Kind: KindIntegration, Op: op, Msg: msg, Err: err}
}

func notFoundError(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func forbiddenError(op, msg string) error {
	return &Error{Kind: KindForbidden, Op: op, Msg: msg}
}

// KindOf retourne la catégorie d'une erreur, KindIntegration pour tout ce qui n'est pas typé
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIntegration
}
