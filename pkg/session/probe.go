package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/logger"
)

// Prober checks whether a Handle is still accepted by the tracker.
type Prober struct {
	client  Doer
	timeout time.Duration
	logger  logger.Logger
}

func NewProber(client Doer, timeout time.Duration, log logger.Logger) *Prober {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Prober{client: client, timeout: timeout, logger: log.WithField("component", "session_probe")}
}

// Probe requests the tracker home page with the session cookies. A 200 page
// that shows a logout link, or no login form, means the cookies are live.
func (p *Prober) Probe(ctx context.Context, h *Handle) (State, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.OriginString()+"/", nil)
	if err != nil {
		return StateUnvalidated, err
	}
	h.Apply(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return StateUnvalidated, errs.Wrap(errs.ErrorTypeTransient, "session probe failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return StateUnvalidated, errs.Wrap(errs.ErrorTypeTransient, "reading probe response", err)
	}

	state := classifyProbe(resp.StatusCode, body)
	p.logger.DebugWithFields("Session probed", map[string]interface{}{
		"status_code": resp.StatusCode,
		"state":       state.String(),
	})

	switch {
	case state != StateUnvalidated:
		return state, nil
	default:
		return state, errs.New(errs.ErrorTypeTransient, fmt.Sprintf("unexpected probe status %d", resp.StatusCode), resp.StatusCode)
	}
}

func classifyProbe(status int, body []byte) State {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return StateExpired
	case status != http.StatusOK:
		return StateUnvalidated
	}

	lower := bytes.ToLower(body)
	if bytes.Contains(lower, []byte("logout")) || !bytes.Contains(lower, []byte("login")) {
		return StateValid
	}
	return StateExpired
}
