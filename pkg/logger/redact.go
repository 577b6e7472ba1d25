package logger

import "net/url"

func redactQuery(raw, key string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get(key) == "" {
		return raw
	}
	q.Set(key, "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
