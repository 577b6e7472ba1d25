// Package logger wraps zerolog behind a small interface so components can
// log structured fields without depending on zerolog directly.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "fetcher")
//	log.InfoWithFields("feed fetched", map[string]interface{}{
//	    "category_id": 2163,
//	    "bytes":       len(body),
//	})
//
// Tests use NewTestLogger to capture messages or NewNopLogger to drop them.
package logger
