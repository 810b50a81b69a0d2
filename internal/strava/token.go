package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/observability"
)

// Token is the credential set returned by the token endpoint.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenRefresher exchanges the long-lived refresh token for a short-lived access token.
// A new access token is requested on every call; nothing is cached or retried.
type TokenRefresher struct {
	conf         oauth2.Config
	refreshToken string
	opts         options
}

// NewTokenRefresher builds a refresher that posts refresh grants to tokenURL.
func NewTokenRefresher(tokenURL string, creds config.Credentials, opts ...Option) *TokenRefresher {
	return &TokenRefresher{
		conf:         oauthConfig(tokenURL, creds.ClientID, creds.ClientSecret),
		refreshToken: creds.RefreshToken,
		opts:         buildOptions(opts),
	}
}

// Refresh performs one refresh grant and returns the new token set. A rejected grant yields
// an *AuthenticationError carrying the endpoint's response body.
func (r *TokenRefresher) Refresh(ctx context.Context) (Token, error) {
	ctx, span := observability.Tracer("strava").Start(ctx, "strava.refresh_token")
	defer span.End()

	r.opts.logger.Info("requesting new access token")
	src := r.conf.TokenSource(r.clientContext(ctx), &oauth2.Token{RefreshToken: r.refreshToken})
	tok, err := src.Token()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token refresh failed")
		authErr := asAuthenticationError(err)
		r.opts.logger.Error("token refresh failed", zap.Int("status", authErr.StatusCode), zap.String("body", authErr.Body))
		return Token{}, authErr
	}

	if tok.RefreshToken != "" && tok.RefreshToken != r.refreshToken {
		r.opts.logger.Warn("strava rotated the refresh token; update "+config.EnvRefreshToken,
			zap.Time("access_token_expiry", tok.Expiry))
	}
	span.SetAttributes(attribute.String("token.expiry", tok.Expiry.UTC().Format(time.RFC3339)))
	r.opts.logger.Info("access token retrieved", zap.Time("expiry", tok.Expiry))
	return fromOAuth(tok), nil
}

func (r *TokenRefresher) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, strictTokenClient(r.opts.httpClient))
}

// strictTokenClient copies c so that token responses other than 200 OK fail. oauth2 on its
// own accepts any 2xx status.
func strictTokenClient(c *http.Client) *http.Client {
	strict := *c
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	strict.Transport = okOnlyTransport{base: base}
	return &strict
}

type okOnlyTransport struct {
	base http.RoundTripper
}

func (t okOnlyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode == http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return resp, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &AuthenticationError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Err:        fmt.Errorf("unexpected token endpoint status %s", resp.Status),
	}
}

// Authorizer performs the one-time authorization_code grant that yields the first refresh
// token for an athlete.
type Authorizer struct {
	conf oauth2.Config
	opts options
}

// NewAuthorizer builds an Authorizer posting to tokenURL.
func NewAuthorizer(tokenURL, clientID, clientSecret string, opts ...Option) *Authorizer {
	return &Authorizer{
		conf: oauthConfig(tokenURL, clientID, clientSecret),
		opts: buildOptions(opts),
	}
}

// Exchange trades an authorization code for a token set.
func (a *Authorizer) Exchange(ctx context.Context, code string) (Token, error) {
	if code == "" {
		return Token{}, &config.MissingEnvError{Keys: []string{config.EnvCode}}
	}
	ctx, span := observability.Tracer("strava").Start(ctx, "strava.exchange_code")
	defer span.End()

	tok, err := a.conf.Exchange(context.WithValue(ctx, oauth2.HTTPClient, strictTokenClient(a.opts.httpClient)), code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "code exchange failed")
		return Token{}, asAuthenticationError(err)
	}
	a.opts.logger.Info("authorization code exchanged", zap.Time("expiry", tok.Expiry))
	return fromOAuth(tok), nil
}

func oauthConfig(tokenURL, clientID, clientSecret string) oauth2.Config {
	return oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func asAuthenticationError(err error) *AuthenticationError {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &AuthenticationError{StatusCode: status, Body: string(retrieveErr.Body), Err: err}
	}
	return &AuthenticationError{Err: err}
}

func fromOAuth(tok *oauth2.Token) Token {
	return Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
