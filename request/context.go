package request

import "context"

type snapshotContextKey struct{}

type commandContextKey struct{}

// WithSnapshot сохраняет снимок запроса в контексте.
func WithSnapshot(ctx context.Context, s *Snapshot) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, snapshotContextKey{}, s)
}

// SnapshotFrom возвращает снимок запроса, сохраненный ядром.
func SnapshotFrom(ctx context.Context) (*Snapshot, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(snapshotContextKey{}).(*Snapshot)
	return s, ok && s != nil
}

// WithCommand прикрепляет экземпляр команды к контексту запроса.
func WithCommand(ctx context.Context, cmd any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, commandContextKey{}, cmd)
}

// CommandFrom возвращает прикрепленную к запросу команду.
func CommandFrom(ctx context.Context) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	cmd := ctx.Value(commandContextKey{})
	return cmd, cmd != nil
}
