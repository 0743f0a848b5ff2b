package storage

import "context"

// prefixed namespaces every key of an underlying store.
type prefixed struct {
	inner  Storage
	prefix string
	owns   bool
}

// WithPrefix returns a Storage that prepends prefix to every key before
// delegating to s. Closing the result does not close s.
func WithPrefix(s Storage, prefix string) Storage {
	if prefix == "" {
		return s
	}
	return &prefixed{inner: s, prefix: prefix}
}

func (p *prefixed) GetItem(ctx context.Context, key string) ([]byte, error) {
	return p.inner.GetItem(ctx, p.prefix+key)
}

func (p *prefixed) SetItem(ctx context.Context, key string, value []byte) error {
	return p.inner.SetItem(ctx, p.prefix+key, value)
}

func (p *prefixed) RemoveItem(ctx context.Context, key string) error {
	return p.inner.RemoveItem(ctx, p.prefix+key)
}

func (p *prefixed) Close() error {
	if p.owns {
		return p.inner.Close()
	}
	return nil
}
