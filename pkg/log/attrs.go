package log

import "log/slog"

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func WaitID[T ~string](id T) slog.Attr {
	return slog.String("wait_id", string(id))
}

func Key(key string) slog.Attr {
	return slog.String("key", key)
}

func Keys(keys []string) slog.Attr {
	return slog.Any("keys", keys)
}

func Job(job string) slog.Attr {
	return slog.String("job", job)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
