package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide prints how to copy the session cookies and passkey from
// a logged-in browser.
func WriteCookieGuide(w io.Writer, origin string) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "SESSION COOKIE GUIDE")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The tracker only serves feeds and .torrent files to logged-in sessions.")
	fmt.Fprintln(w, "yggharvest reuses the cookies of your browser session:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  1. Log in at %s and pass any browser challenge.\n", origin)
	fmt.Fprintln(w, "  2. Open the developer tools (F12) and select the Network tab.")
	fmt.Fprintln(w, "  3. Reload the page and click the first request to the tracker.")
	fmt.Fprintln(w, "  4. Under Request Headers, copy the whole value of the Cookie header.")
	fmt.Fprintln(w, "     It looks like: ygg_=abc123; cf_clearance=...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Your passkey is shown on your account page; it is needed for RSS")
	fmt.Fprintln(w, "download links.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Cookies expire. When harvests start failing with an expired session,")
	fmt.Fprintln(w, "run 'yggharvest auth login' again. Never share these values.")
	fmt.Fprintln(w, line)
}
