package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/go-training/hatena-mcp/pkg/logger"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

type clientFlags struct {
	serverURL    string
	clientID     string
	clientSecret string
	redirectURI  string
	tool         string
	args         string
	noBrowser    bool
}

// newClientCmd returns a command that logs in to a running server with a
// registered client, then lists the tools and calls one of them.
func newClientCmd() *cobra.Command {
	var f clientFlags
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Authorize against a running server and call an MCP tool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.New()
			var args map[string]any
			if f.args != "" {
				if err := json.Unmarshal([]byte(f.args), &args); err != nil {
					return fmt.Errorf("--args: %w", err)
				}
			}
			return runClient(cmd.Context(), cmd.OutOrStdout(), f, args)
		},
	}
	cmd.Flags().StringVar(&f.serverURL, "server", "http://localhost:8080/mcp", "MCP endpoint URL")
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "registered OAuth client id")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "registered OAuth client secret")
	cmd.Flags().StringVar(&f.redirectURI, "redirect-uri", "http://localhost:8085/oauth/callback", "redirect URI registered for the client")
	cmd.Flags().StringVar(&f.tool, "tool", "whoami", "tool to call after login")
	cmd.Flags().StringVar(&f.args, "args", "", "tool arguments as a JSON object")
	cmd.Flags().BoolVar(&f.noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("client-secret")
	return cmd
}

func runClient(ctx context.Context, out io.Writer, f clientFlags, args map[string]any) error {
	c, err := client.NewOAuthStreamableHttpClient(f.serverURL, client.OAuthConfig{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		RedirectURI:  f.redirectURI,
		TokenStore:   client.NewMemoryTokenStore(),
		PKCEEnabled:  true,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	defer c.Close()

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "hatena-mcp-client",
				Version: version,
			},
		},
	}

	result, err := c.Initialize(ctx, initReq)
	if client.IsOAuthAuthorizationRequiredError(err) {
		slog.Info("OAuth authorization required. Starting authorization flow...")
		if err := authorize(ctx, client.GetOAuthHandler(err), f); err != nil {
			return err
		}
		result, err = c.Initialize(ctx, initReq)
	}
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	slog.Info("Client initialized",
		"server", result.ServerInfo.Name,
		"version", result.ServerInfo.Version)

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	for _, tool := range tools.Tools {
		slog.Info("Available Tool", "name", tool.Name)
	}

	var call mcp.CallToolRequest
	call.Params.Name = f.tool
	call.Params.Arguments = args
	toolResult, err := c.CallTool(ctx, call)
	if err != nil {
		return fmt.Errorf("call %s: %w", f.tool, err)
	}
	return printToolResult(out, toolResult)
}

// authorize runs the authorization code flow with PKCE through a local
// callback listener and stores the token in the client's token store.
func authorize(ctx context.Context, h *transport.OAuthHandler, f clientFlags) error {
	callback, err := url.Parse(f.redirectURI)
	if err != nil {
		return fmt.Errorf("redirect uri: %w", err)
	}

	params := make(chan url.Values, 1)
	srv, _, err := startCallbackServer(callback, params)
	if err != nil {
		return err
	}
	defer srv.Close()

	codeVerifier, err := client.GenerateCodeVerifier()
	if err != nil {
		return fmt.Errorf("generate code verifier: %w", err)
	}
	state, err := client.GenerateState()
	if err != nil {
		return fmt.Errorf("generate state: %w", err)
	}

	authURL, err := h.GetAuthorizationURL(ctx, state, client.GenerateCodeChallenge(codeVerifier))
	if err != nil {
		return fmt.Errorf("authorization url: %w", err)
	}
	if f.noBrowser {
		slog.Info("Open the following URL in your browser", "url", authURL)
	} else {
		slog.Info("Opening browser to authorization URL", "authURL", authURL)
		openBrowser(authURL)
	}

	var q url.Values
	select {
	case q = <-params:
	case <-time.After(5 * time.Minute):
		return errors.New("timed out waiting for the authorization callback")
	case <-ctx.Done():
		return ctx.Err()
	}

	if q.Get("state") != state {
		return fmt.Errorf("state mismatch: expected %s, got %s", state, q.Get("state"))
	}
	code := q.Get("code")
	if code == "" {
		return fmt.Errorf("no authorization code received: %s", q.Get("error"))
	}

	slog.Info("Exchanging authorization code for token...")
	if err := h.ProcessAuthorizationResponse(ctx, code, state, codeVerifier); err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	slog.Info("Authorization successful!")
	return nil
}

func printToolResult(w io.Writer, result *mcp.CallToolResult) error {
	if result.IsError {
		slog.Warn("Tool returned an error")
	}
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			if _, err := fmt.Fprintln(w, textContent.Text); err != nil {
				return err
			}
			continue
		}
		jsonBytes, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, string(jsonBytes)); err != nil {
			return err
		}
	}
	return nil
}

// startCallbackServer listens on the redirect URI's host and forwards the
// first callback's query parameters. It returns the address it listens on.
func startCallbackServer(callback *url.URL, params chan<- url.Values) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", callback.Host)
	if err != nil {
		return nil, "", fmt.Errorf("listen %s: %w", callback.Host, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callback.Path, func(w http.ResponseWriter, r *http.Request) {
		select {
		case params <- r.URL.Query():
		default:
		}
		w.Header().Set("Content-Type", "text/html")
		_, err := w.Write([]byte(`<html><body>
<h1>Authorization Successful</h1>
<p>You can now close this window and return to the application.</p>
</body></html>`))
		if err != nil {
			slog.Error("Error writing response", "err", err)
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
		}
	}()
	return server, ln.Addr().String(), nil
}

// openBrowser opens the default browser to the specified URL
func openBrowser(target string) {
	var err error

	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", target).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	case "darwin":
		err = exec.Command("open", target).Start()
	default:
		err = errors.New("unsupported platform")
	}

	if err != nil {
		slog.Error("Failed to open browser", "err", err)
		slog.Info("Please open the following URL in your browser", "url", target)
	}
}
