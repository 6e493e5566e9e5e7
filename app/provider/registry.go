package provider

import (
	"errors"
	"strings"
)

const (
	CodeStripe int32 = 1
)

var (
	ErrProviderNotSupported = errors.New("provider is not supported")

	// ErrInvalidSignature marks a notification whose signature did not
	// verify against the shared webhook secret.
	ErrInvalidSignature = errors.New("invalid notification signature")

	// ErrMalformedPayload marks a notification whose signature verified but
	// whose body could not be parsed.
	ErrMalformedPayload = errors.New("malformed notification payload")
)

type Registry struct {
	providers map[int32]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	items := make(map[int32]Provider, len(providers))
	for _, p := range providers {
		items[p.Code()] = p
	}
	return &Registry{providers: items}
}

func (r *Registry) Get(code int32) (Provider, error) {
	p, ok := r.providers[code]
	if !ok {
		return nil, ErrProviderNotSupported
	}
	return p, nil
}

func ParseCode(raw string) (int32, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stripe", "1":
		return CodeStripe, nil
	default:
		return 0, ErrProviderNotSupported
	}
}
