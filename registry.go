package volt

import (
	"fmt"
	"io"
	"reflect"
	"sync"
)

// ResultConverter turns one concrete action-result value into a
// Response.
type ResultConverter func(value any) (*Response, error)

// ResultRegistry maps concrete action-result types to converters.
//
// Built-in conversions (checked before the registry, in order):
//
//	nil         204 No Content
//	*Response   identity
//	string      text/plain, UTF-8
//	[]byte      application/octet-stream
//	error       rendered through the error mapping
//	func() any  deferred: invoked, inner value re-dispatched
//	io.Reader   stream content, unknown length (chunked)
//
// Registering a converter for *Response itself is forbidden. A result
// whose type has no conversion yields an unregistered-action-type
// error (500).
type ResultRegistry struct {
	mu         sync.RWMutex
	converters map[reflect.Type]ResultConverter
}

// NewResultRegistry creates an empty registry.
func NewResultRegistry() *ResultRegistry {
	return &ResultRegistry{
		converters: make(map[reflect.Type]ResultConverter, 8),
	}
}

var responseType = reflect.TypeOf((*Response)(nil))

// Register adds a converter for the exact dynamic type of prototype.
// Registration is not blocked after start; it is safe for concurrent use.
func (r *ResultRegistry) Register(prototype any, conv ResultConverter) error {
	t := reflect.TypeOf(prototype)
	if t == nil {
		return fmt.Errorf("volt: cannot register a converter for nil")
	}
	if t == responseType {
		return fmt.Errorf("volt: registering a converter for *Response is forbidden")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[t] = conv
	return nil
}

// RegisterResultType registers a typed converter; the common way to
// teach the registry about application result types.
//
//	RegisterResultType(app.Results(), func(u User) *Response {
//	    return JSON(200, u)
//	})
func RegisterResultType[T any](r *ResultRegistry, conv func(T) *Response) error {
	var zero T
	proto := any(zero)
	if proto == nil {
		// Interface-typed T: key by the pointer-free reflect type.
		t := reflect.TypeOf((*T)(nil)).Elem()
		if t == responseType {
			return fmt.Errorf("volt: registering a converter for *Response is forbidden")
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.converters[t] = func(v any) (*Response, error) {
			return conv(v.(T)), nil
		}
		return nil
	}
	return r.Register(proto, func(v any) (*Response, error) {
		return conv(v.(T)), nil
	})
}

// maxDeferredRedispatch bounds deferred-result chains.
const maxDeferredRedispatch = 8

// Convert resolves an action result to a Response. errConv renders
// error results (supplied by the dispatcher so the application's
// error mapping applies).
func (r *ResultRegistry) Convert(value any, errConv func(error) *Response) (*Response, error) {
	for depth := 0; ; depth++ {
		switch v := value.(type) {
		case nil:
			return NewResponse(204), nil
		case *Response:
			return v, nil
		case string:
			return Text(200, v), nil
		case []byte:
			return Bytes(200, v, ""), nil
		case error:
			if errConv != nil {
				return errConv(v), nil
			}
			return nil, v
		case func() any:
			// Deferred result: run it, re-dispatch on the inner value.
			if depth >= maxDeferredRedispatch {
				return nil, ErrUnregisteredActionType
			}
			value = v()
			continue
		case io.Reader:
			return Stream(200, v, LengthUnknown, ""), nil
		}

		r.mu.RLock()
		conv, ok := r.converters[reflect.TypeOf(value)]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnregisteredActionType, value)
		}
		res, err := conv(value)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
}
