package mail

import (
	"errors"
	"io"
	"net"
	"net/textproto"
)

type Kind int

const (
	KindTransport Kind = iota
	KindAuth
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "authentication error"
	case KindProtocol:
		return "smtp protocol error"
	default:
		return "transport error"
	}
}

var (
	ErrAuth      = errors.New("authentication error")
	ErrProtocol  = errors.New("smtp protocol error")
	ErrTransport = errors.New("transport error")

	errNoStartTLS = errors.New("server does not support STARTTLS")
	errNoAuth     = errors.New("server does not support AUTH")
)

const (
	stageDial     = "dial"
	stageGreeting = "greeting"
	stageStartTLS = "starttls"
	stageAuth     = "auth"
	stageEnvelope = "envelope"
	stageData     = "data"
	stageQuit     = "quit"
)

// DispatchError is the tagged failure of a mail delivery.
type DispatchError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *DispatchError) Error() string {
	return e.Kind.String() + " during " + e.Stage + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func (e *DispatchError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrProtocol:
		return e.Kind == KindProtocol
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

func classify(stage string, err error) *DispatchError {
	de := &DispatchError{Stage: stage, Err: err, Kind: KindProtocol}

	var (
		tpErr  *textproto.Error
		netErr net.Error
	)
	switch {
	case errors.As(err, &tpErr):
		if stage == stageAuth {
			de.Kind = KindAuth
		}
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		stage == stageDial,
		stage == stageStartTLS:
		de.Kind = KindTransport
	}
	return de
}
