package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/dgreenaway/posbridge/internal/config"
	"github.com/dgreenaway/posbridge/internal/lightspeed"
	"github.com/dgreenaway/posbridge/internal/storage"
)

const (
	authTimeout     = 5 * time.Minute
	authURL         = "https://cloud.lightspeedapp.com/auth/oauth/authorize"
	callbackPath    = "/callback"
	callbackPort    = "8080"
	stateByteLength = 32
)

// buildAuthURL constructs the Lightspeed OAuth authorization URL.
func buildAuthURL(clientID string, redirectURI string, state string) string {
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", "employee:all")
	params.Set("state", state)

	return authURL + "?" + params.Encode()
}

// generateOAuthState generates a cryptographically secure random state for CSRF protection.
func generateOAuthState() (string, error) {
	b := make([]byte, stateByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// browserCommand returns the command and arguments to open a URL on the current OS.
func browserCommand(targetURL string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{targetURL}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", targetURL}
	default:
		return "xdg-open", []string{targetURL}
	}
}

// openBrowser opens the default web browser to the specified URL.
func openBrowser(targetURL string) error {
	name, args := browserCommand(targetURL)
	cmd := exec.Command(name, args...)
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout

	return cmd.Start()
}

// runAuth performs the Lightspeed OAuth authorization flow. It starts a
// local server, opens the browser for user consent, exchanges the code for
// tokens, resolves the connected account, and saves the connection locally.
func runAuth() error {
	fmt.Println("=== Lightspeed Authorization ===")
	fmt.Println()

	cfg, err := config.LoadLocal()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	connectionPath, err := config.ConnectionFilePath()
	if err != nil {
		return fmt.Errorf("getting connection path: %w", err)
	}

	client, err := lightspeed.NewClient(lightspeed.Config{
		ClientID:     cfg.Lightspeed.ClientID,
		ClientSecret: cfg.Lightspeed.ClientSecret,
	})
	if err != nil {
		return fmt.Errorf("creating lightspeed client: %w", err)
	}

	// Generate state for CSRF protection.
	state, err := generateOAuthState()
	if err != nil {
		return fmt.Errorf("generating OAuth state: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server, err := startOAuthCallbackServer(codeChan, errChan, state)
	if err != nil {
		return fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	redirectURI := fmt.Sprintf("http://localhost:%s%s", callbackPort, callbackPath)
	authURLWithParams := buildAuthURL(cfg.Lightspeed.ClientID, redirectURI, state)

	fmt.Println("Opening browser for Lightspeed authorization...")
	fmt.Println()
	fmt.Println("If the browser doesn't open, visit this URL:")
	fmt.Println(authURLWithParams)
	fmt.Println()

	if err := openBrowser(authURLWithParams); err != nil {
		fmt.Printf("Could not open browser: %s\n", err)
	}

	fmt.Println("Waiting for authorization...")

	var code string
	select {
	case code = <-codeChan:
		// Success.
	case err := <-errChan:
		return fmt.Errorf("authorization failed: %w", err)
	case <-time.After(authTimeout):
		return fmt.Errorf("authorization timed out after %s", authTimeout)
	}

	fmt.Println()
	fmt.Println("Authorization received, exchanging for tokens...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tokens, err := client.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return fmt.Errorf("exchanging code for tokens: %w", err)
	}

	account, err := client.Account(ctx, tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("resolving account: %w", err)
	}

	store, err := storage.NewFileConnectionStore(connectionPath)
	if err != nil {
		return fmt.Errorf("creating connection store: %w", err)
	}

	conn := &storage.Connection{
		AccessToken:  tokens.AccessToken,
		AccountID:    account.AccountID,
		AccountName:  account.Name,
		ExpiresAt:    tokens.ExpiresAt,
		RefreshToken: tokens.RefreshToken,
		UserID:       cfg.UserID,
	}
	if err := store.Save(ctx, conn); err != nil {
		return fmt.Errorf("saving connection: %w", err)
	}

	fmt.Println()
	fmt.Println("Authorization successful!")
	fmt.Printf("Connected account: %s (%s)\n", account.Name, account.AccountID)
	fmt.Printf("Connection saved to: %s\n", connectionPath)

	return nil
}

// writeCallbackResponse writes an HTML response for the OAuth callback page.
// It escapes the title and message to prevent XSS attacks.
func writeCallbackResponse(w http.ResponseWriter, title string, message string) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(
		w,
		`<html><body><h1>%s</h1><p>%s</p><p>You can close this window.</p></body></html>`,
		html.EscapeString(title),
		html.EscapeString(message),
	)
}

// startOAuthCallbackServer starts a local HTTP server to receive the
// Lightspeed OAuth callback. It sends the authorization code or error
// through the provided channels. The expectedState parameter is used for
// CSRF protection - the callback must include a matching state.
func startOAuthCallbackServer(
	codeChan chan<- string,
	errChan chan<- error,
	expectedState string,
) (*http.Server, error) {
	listener, err := net.Listen("tcp", ":"+callbackPort)
	if err != nil {
		return nil, fmt.Errorf("port %s is already in use", callbackPort)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		errDesc := r.URL.Query().Get("error_description")
		errMsg := r.URL.Query().Get("error")
		state := r.URL.Query().Get("state")

		if errMsg != "" {
			errChan <- fmt.Errorf("%s: %s", errMsg, errDesc)
			writeCallbackResponse(w, "Authorization Failed", fmt.Sprintf("%s: %s", errMsg, errDesc))
			return
		}

		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			writeCallbackResponse(w, "Authorization Failed", "No authorization code received.")
			return
		}

		// Verify state parameter for CSRF protection.
		if expectedState != "" && state != expectedState {
			errChan <- fmt.Errorf("state mismatch: possible CSRF attack")
			writeCallbackResponse(w, "Authorization Failed", "State validation failed.")
			return
		}

		codeChan <- code
		writeCallbackResponse(w, "Authorization Successful", "You can return to the terminal.")
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	return server, nil
}
