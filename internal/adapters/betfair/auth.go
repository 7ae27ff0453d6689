package betfair

// auth.go: login no interactivo de Betfair.
//
// POST {identity}/api/certlogin con certificado TLS de cliente, header
// X-Application y form username/password. Devuelve {sessionToken, loginStatus};
// el token va luego en X-Authentication de cada llamada.

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

const loginStatusSuccess = "SUCCESS"

// Credentials son los datos de login de Betfair.
type Credentials struct {
	Username string
	Password string
	AppKey   string
	CertPath string
	KeyPath  string
}

// Validate falla con domain.ErrConfiguration listando lo que falta.
func (c Credentials) Validate() error {
	var missing []string
	if c.Username == "" {
		missing = append(missing, "BETFAIR_USERNAME")
	}
	if c.Password == "" {
		missing = append(missing, "BETFAIR_PASSWORD")
	}
	if c.AppKey == "" {
		missing = append(missing, "BETFAIR_APP_KEY")
	}
	if c.CertPath == "" {
		missing = append(missing, "BETFAIR_CERT_PATH")
	}
	if c.KeyPath == "" {
		missing = append(missing, "BETFAIR_KEY_PATH")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// Options ajusta endpoints y transporte. Con HTTPClient nil se construye uno
// con el certificado de Credentials.
type Options struct {
	IdentityBase string
	BettingBase  string
	HTTPClient   *http.Client
}

// Login valida credenciales, hace cert login y devuelve el cliente autenticado.
func Login(ctx context.Context, creds Credentials, opts Options) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("betfair.Login: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		cert, err := tls.LoadX509KeyPair(creds.CertPath, creds.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("betfair.Login: load certificate: %w: %v", domain.ErrConfiguration, err)
		}
		httpClient = &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				},
			},
		}
	}

	identityBase := opts.IdentityBase
	if identityBase == "" {
		identityBase = defaultIdentityBase
	}
	bettingBase := opts.BettingBase
	if bettingBase == "" {
		bettingBase = defaultBettingBase
	}

	c := &Client{
		http:           httpClient,
		identityBase:   identityBase,
		bettingBase:    bettingBase,
		creds:          creds,
		bettingLimiter: rate.NewLimiter(bettingRatePerSec, 5),
		loginLimiter:   rate.NewLimiter(rate.Every(time.Minute/loginRatePerMin), 2),
	}
	if err := c.login(ctx); err != nil {
		return nil, fmt.Errorf("betfair.Login: %w", err)
	}
	return c, nil
}

// login obtiene un session token nuevo y lo guarda en el cliente.
func (c *Client) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.creds.Username)
	form.Set("password", c.creds.Password)
	body := form.Encode()
	endpoint := strings.TrimRight(c.identityBase, "/") + "/api/certlogin"

	var resp certLoginResponse
	err := c.doWithRetry(ctx, c.loginLimiter, "certlogin", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Application", c.creds.AppKey)
		return c.http.Do(req)
	}, &resp)
	if err != nil {
		return fmt.Errorf("certlogin: %w", err)
	}

	if resp.LoginStatus != loginStatusSuccess || resp.SessionToken == "" {
		return fmt.Errorf("%w: login status %s", domain.ErrAuth, resp.LoginStatus)
	}
	c.setToken(resp.SessionToken)
	return nil
}
