package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/server"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/urfave/cli/v3"
)

// loginTimeout bounds the wait for the browser callback.
var loginTimeout = 2 * time.Minute

// AuthLogin performs the OAuth2 authorization code flow and stores the tokens in the config file.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization, and exchanges the code.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	cred, err := r.doOAuth(ctx)
	if err != nil {
		return err
	}

	r.tokens = nil
	if err := r.saveCredential(cred); err != nil {
		return err
	}

	catalog, err := r.catalog()
	if err != nil {
		return err
	}
	user, err := catalog.CurrentUser(ctx)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Logged in as %s (%s)", user.DisplayName, user.ID)
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s\n", r.configPath)
	}
	r.writePlain("\nYou can now use: djai search \"<track>\"\n")
	return nil
}

// AuthStatus reports the logged-in account, refreshing the token when it has expired.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if !r.config.Credentials.Spotify.HasToken() {
		return r.writePlain("✗ Not logged in. Run 'djai auth login'.\n")
	}

	catalog, err := r.catalog()
	if err != nil {
		return err
	}
	user, err := catalog.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify login: %w", err)
	}

	r.writePlain("✓ Logged in as %s (%s)\n", user.DisplayName, user.ID)
	r.writePlain("Token expires: %s\n", r.tokens.Credential().ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

// AuthLogout clears the stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.config.Credentials.Spotify.ClearToken()
	r.tokens = nil

	if r.configPath != "" {
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}
	return r.writePlain("✓ Logged out\n")
}

// callbackAddr splits the redirect URI into a listen address and callback path.
func callbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("%w: redirect_uri %q has no host", shared.ErrInvalidConfig, redirectURI)
	}

	addr = u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}
	return addr, u.Path, nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context) (models.Credential, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to generate state token: %w", err)
	}

	addr, path, err := callbackAddr(r.spotify.OAuthConfig().RedirectURL)
	if err != nil {
		return models.Credential{}, err
	}

	oauthHandler := server.NewOAuthHandler(r.spotify, state, path)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve(serveCtx, addr, router, shared.WithLogger(r.logger, "component", "oauth"))
	}()

	authURL := r.spotify.AuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", loginTimeout)

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return models.Credential{}, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return models.Credential{}, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, loginTimeout)
	case <-ctx.Done():
		return models.Credential{}, ctx.Err()
	}

	stop()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return models.Credential{}, fmt.Errorf("authorization failed: %w", result.Error())
	}
	return result.Credential, nil
}
