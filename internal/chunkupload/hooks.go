package chunkupload

import "context"

// Hooks are callbacks invoked during an upload.
//
// Hooks are called synchronously, in the order of the events they describe.
// Progress hooks run on whichever goroutine the transport reports progress
// from; the others run on the goroutine calling Upload. Hooks that return
// an error stop the upload; Upload then returns a *HookError.
//
// Any of the functions may be nil.
type Hooks struct {
	// OnStart is called once at the start of Upload.
	OnStart func(ctx context.Context) error

	// OnItemStart is called before a file is transferred.
	OnItemStart func(ctx context.Context, item FileItem) error

	// OnItemProgress is called when a file's progress advances.
	OnItemProgress func(item FileItem)

	// OnProgress is called after OnItemProgress with the overall progress
	// of the run as a percentage.
	OnProgress func(percent float64)

	// OnItemComplete is called after a file is finalized.
	OnItemComplete func(ctx context.Context, item FileItem) error

	// OnItemError is called when a file fails to upload.
	//
	// The failure does not stop the run.
	OnItemError func(item FileItem, err error)

	// OnComplete is called once after every file was processed.
	//
	// It is not called if the upload is cancelled.
	OnComplete func(ctx context.Context) error
}

// withDefaults replaces nil hooks by no-ops.
func (h Hooks) withDefaults() Hooks {
	if h.OnStart == nil {
		h.OnStart = func(context.Context) error { return nil }
	}
	if h.OnItemStart == nil {
		h.OnItemStart = func(context.Context, FileItem) error { return nil }
	}
	if h.OnItemProgress == nil {
		h.OnItemProgress = func(FileItem) {}
	}
	if h.OnProgress == nil {
		h.OnProgress = func(float64) {}
	}
	if h.OnItemComplete == nil {
		h.OnItemComplete = func(context.Context, FileItem) error { return nil }
	}
	if h.OnItemError == nil {
		h.OnItemError = func(FileItem, error) {}
	}
	if h.OnComplete == nil {
		h.OnComplete = func(context.Context) error { return nil }
	}
	return h
}

// MergeHooks returns Hooks that invoke each of the given hooks in order.
//
// Hooks returning an error stop the fan-out and the error is returned.
func MergeHooks(all ...Hooks) Hooks {
	return Hooks{
		OnStart: func(ctx context.Context) error {
			for _, h := range all {
				if h.OnStart == nil {
					continue
				}
				if err := h.OnStart(ctx); err != nil {
					return err
				}
			}
			return nil
		},

		OnItemStart: func(ctx context.Context, item FileItem) error {
			for _, h := range all {
				if h.OnItemStart == nil {
					continue
				}
				if err := h.OnItemStart(ctx, item); err != nil {
					return err
				}
			}
			return nil
		},

		OnItemProgress: func(item FileItem) {
			for _, h := range all {
				if h.OnItemProgress != nil {
					h.OnItemProgress(item)
				}
			}
		},

		OnProgress: func(percent float64) {
			for _, h := range all {
				if h.OnProgress != nil {
					h.OnProgress(percent)
				}
			}
		},

		OnItemComplete: func(ctx context.Context, item FileItem) error {
			for _, h := range all {
				if h.OnItemComplete == nil {
					continue
				}
				if err := h.OnItemComplete(ctx, item); err != nil {
					return err
				}
			}
			return nil
		},

		OnItemError: func(item FileItem, err error) {
			for _, h := range all {
				if h.OnItemError != nil {
					h.OnItemError(item, err)
				}
			}
		},

		OnComplete: func(ctx context.Context) error {
			for _, h := range all {
				if h.OnComplete == nil {
					continue
				}
				if err := h.OnComplete(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
