package snapshot

import (
	"context"
	"io"

	"github.com/kailuenliang/ddsp"
	"github.com/kailuenliang/ddsp/blobstore"
	"github.com/kailuenliang/ddsp/resource"
)

// StoreOptions holds options for store-backed snapshot IO.
type StoreOptions struct {
	// Codec is the payload compression algorithm.
	Codec Codec

	// Controller, if set, throttles the snapshot stream so checkpointing
	// does not starve training IO.
	Controller *resource.Controller
}

// DefaultStoreOptions are the default store-backed snapshot options.
var DefaultStoreOptions = StoreOptions{
	Codec: CodecZstd,
}

// Save writes the codebook to the named blob.
func Save(ctx context.Context, store blobstore.Store, name string, cb *ddsp.Codebook, optFns ...func(o *StoreOptions)) error {
	opts := DefaultStoreOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Controller != nil {
		if err := opts.Controller.AcquireWorker(ctx); err != nil {
			return err
		}
		defer opts.Controller.ReleaseWorker()
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	var dst io.Writer = w
	if opts.Controller != nil {
		dst = resource.NewRateLimitedWriter(ctx, w, opts.Controller)
	}

	if err := Write(dst, cb, func(o *Options) { o.Codec = opts.Codec }); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Load reads the codebook from the named blob.
func Load(ctx context.Context, store blobstore.Store, name string, optFns ...func(o *StoreOptions)) (*ddsp.Codebook, error) {
	opts := DefaultStoreOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Controller != nil {
		if err := opts.Controller.AcquireWorker(ctx); err != nil {
			return nil, err
		}
		defer opts.Controller.ReleaseWorker()
	}

	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var src io.Reader = r
	if opts.Controller != nil {
		src = resource.NewRateLimitedReader(ctx, r, opts.Controller)
	}

	return Read(src)
}

// Latest returns the name of the newest snapshot under prefix, resolved by
// lexicographic order. Name snapshots with a sortable stamp (step counter or
// RFC 3339 time) to make this meaningful. Single-writer training needs no
// stronger commit protocol.
func Latest(ctx context.Context, store blobstore.Store, prefix string) (string, error) {
	names, err := store.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", blobstore.ErrNotFound
	}
	return names[len(names)-1], nil
}
