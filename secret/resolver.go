package secret

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Resolver resolves secret references using registered providers.
//
// Values with the prefix "secretref:" are resolved via providers.
// Other values are returned after strict environment expansion.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. A strict resolver rejects empty secrets.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[string]Provider),
		strict:    strict,
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// NewDefaultResolver returns a strict resolver with the env and file
// providers.
func NewDefaultResolver() *Resolver {
	return NewResolver(true, EnvProvider{}, FileProvider{})
}

// Register registers a provider with the resolver.
func (r *Resolver) Register(provider Provider) {
	if r == nil || provider == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[provider.Name()] = provider
}

// ResolveValue resolves environment variables and secret refs in value. A
// nil Resolver only expands the environment.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil || r == nil {
		return expanded, err
	}

	if providerName, ref, ok := ParseSecretRef(expanded); ok {
		return r.resolveSingle(ctx, providerName, ref)
	}
	return r.resolveInline(ctx, expanded)
}

// ResolveMap resolves each string value in input.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ResolveHeaders resolves header values into a canonical http.Header.
func (r *Resolver) ResolveHeaders(ctx context.Context, headers map[string]string) (http.Header, error) {
	resolved, err := r.ResolveMap(ctx, headers)
	if err != nil {
		return nil, err
	}
	h := make(http.Header, len(resolved))
	for k, v := range resolved {
		h.Set(k, v)
	}
	return h, nil
}

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	const prefix = "secretref:"
	if !strings.HasPrefix(value, prefix) {
		return "", "", false
	}
	provider, ref, ok = strings.Cut(strings.TrimPrefix(value, prefix), ":")
	if !ok || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolveSingle(ctx context.Context, providerName string, ref string) (string, error) {
	provider, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}
	resolved, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("%w: %s:%s", ErrEmptyValue, providerName, ref)
	}
	return resolved, nil
}

var inlineSecretRefPattern = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`)

func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := inlineSecretRefPattern.FindAllStringSubmatchIndex(value, -1)

	out := value
	// Replace from the end so earlier indexes stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		resolved, err := r.resolveSingle(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + resolved + out[m[1]:]
	}
	return out, nil
}
