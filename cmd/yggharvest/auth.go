package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"yggharvest/pkg/auth"
	"yggharvest/pkg/config"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/session"
	"yggharvest/pkg/ui"
)

var (
	loginCookies string
	loginPasskey string
	loginBaseURL string
	loginCheck   bool
	removeYes    bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored tracker sessions",
	Long: `Manage the session profiles used to talk to the tracker. A profile holds
the cookies copied from a logged-in browser and, optionally, your passkey.

Profiles are stored in:
  - the system keychain, when available
  - an encrypted file in the user config directory
  - ` + config.EnvPrefix + `COOKIES / ` + config.EnvPrefix + `PASSKEY (read only)`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store session cookies from your browser",
	Example: `  # Interactive, with a guide to copying cookies
  yggharvest auth login

  # Non-interactive
  yggharvest auth login seedbox --cookies "$COOKIES" --passkey "$PASSKEY"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var authRemoveCmd = &cobra.Command{
	Use:     "remove <profile>",
	Aliases: []string{"logout", "rm"},
	Short:   "Delete a stored profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

var authCheckCmd = &cobra.Command{
	Use:   "check [profile]",
	Short: "Check whether the tracker still accepts a profile's cookies",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authListCmd, authRemoveCmd, authCheckCmd)

	authLoginCmd.Flags().StringVar(&loginCookies, "cookies", "", "raw Cookie header (skips the prompt)")
	authLoginCmd.Flags().StringVar(&loginPasskey, "passkey", "", "account passkey")
	authLoginCmd.Flags().StringVar(&loginBaseURL, "base-url", "", "tracker origin for this profile")
	authLoginCmd.Flags().BoolVar(&loginCheck, "check", true, "verify the cookies against the tracker after storing")
	authRemoveCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "do not ask for confirmation")
}

func profileArg(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultProfile
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return err
	}
	name := profileArg(args)
	origin := loginBaseURL
	if origin == "" {
		origin = cfg.Site.BaseURL
	}

	reader := bufio.NewReader(os.Stdin)
	if existing, _ := manager.Retrieve(name); existing != nil && loginCookies == "" {
		fmt.Fprintf(ui.Out, "Profile '%s' already exists. Replace it? (y/N): ", name)
		if !confirm(reader) {
			return nil
		}
	}

	cookies := loginCookies
	if cookies == "" {
		auth.WriteCookieGuide(ui.Out, origin)
		fmt.Fprint(ui.Out, "\nCookie header (hidden): ")
		if cookies, err = readSecret(reader); err != nil {
			return fmt.Errorf("failed to read cookies: %w", err)
		}
	}
	cookies = strings.TrimPrefix(strings.TrimSpace(cookies), "Cookie:")
	handle, err := session.FromCookieString(origin, cookies)
	if err != nil {
		return err
	}

	passkey := loginPasskey
	if passkey == "" && loginCookies == "" {
		fmt.Fprint(ui.Out, "Passkey (hidden, Enter to skip): ")
		if passkey, err = readSecret(reader); err != nil {
			return fmt.Errorf("failed to read passkey: %w", err)
		}
	}

	p := &auth.Profile{
		Name:    name,
		Cookies: cookies,
		Passkey: strings.TrimSpace(passkey),
		BaseURL: loginBaseURL,
	}
	if err := manager.Store(p); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Profile '%s' stored (%s)", name, strings.Join(handle.CookieNames(), ", ")))

	if loginCheck {
		return checkHandle(cmd.Context(), cfg, handle, p.UserAgent)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}
	profiles, err := manager.List()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		ui.PrintInfo("No stored profiles", "use 'yggharvest auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Profiles")
	for _, p := range profiles {
		s := auth.Sanitize(p)
		fmt.Fprintf(ui.Out, "\n%s\n", ui.Cyan(s.Name))
		fmt.Fprintf(ui.Out, "  Cookies:  %s\n", s.Cookies)
		if s.Passkey != "" {
			fmt.Fprintf(ui.Out, "  Passkey:  %s\n", s.Passkey)
		}
		if s.BaseURL != "" {
			fmt.Fprintf(ui.Out, "  Tracker:  %s\n", s.BaseURL)
		}
		fmt.Fprintf(ui.Out, "  Modified: %s\n", s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}
	name := profileArg(args)
	if !removeYes {
		fmt.Fprintf(ui.Out, "Remove profile '%s'? (y/N): ", name)
		if !confirm(bufio.NewReader(os.Stdin)) {
			return nil
		}
	}
	if err := manager.Delete(name); err != nil {
		return err
	}
	ui.PrintSuccess("Profile removed: " + name)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Site.Profile = profileArg(args)
		cfg.Site.Cookies = ""
	}
	creds, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}
	ui.PrintInfo("Session", creds.source)
	return checkHandle(cmd.Context(), cfg, creds.handle, creds.userAgent)
}

func checkHandle(ctx context.Context, cfg *config.Config, h *session.Handle, userAgent string) error {
	if userAgent == "" {
		userAgent = cfg.Site.UserAgent
	}
	client := session.NewHTTPClient(cfg.Request.Timeout, userAgent)
	state, err := session.NewProber(client, cfg.Request.Timeout, logger.GetLogger()).Probe(ctx, h)
	switch state {
	case session.StateValid:
		ui.PrintSuccess("Session accepted by " + h.OriginString())
		return nil
	case session.StateExpired:
		return errs.New(errs.ErrorTypeAuthExpired, "the tracker rejected these cookies", 0)
	default:
		ui.PrintWarning("Could not verify the session", err)
		return err
	}
}

func confirm(r *bufio.Reader) bool {
	input, _ := r.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret(r *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Out)
		if err == nil {
			return strings.TrimSpace(string(b)), nil
		}
	}
	input, err := r.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
