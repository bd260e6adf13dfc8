package authmanager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/openlims/labflow/config"
)

const oidcURLPart = "/.well-known/openid-configuration"

type OpenIDConfiguration struct {
	Issuer        string `json:"issuer"`
	JwksURI       string `json:"jwks_uri"`
	TokenEndpoint string `json:"token_endpoint"`
}

type TokenEndpointResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type AuthManager interface {
	GetJWKS() (*keyfunc.JWKS, error)
	GetClientCredential() (string, error)
	StartClientCredentialTask(ctx context.Context)
}

type authManager struct {
	configuration         *config.Configuration
	restClient            *resty.Client
	jwks                  *keyfunc.JWKS
	oidc                  *OpenIDConfiguration
	oidcMutex             sync.Mutex
	tokenEndpointResponse *TokenEndpointResponse
}

func NewAuthManager(configuration *config.Configuration, restClient *resty.Client) (AuthManager, error) {
	manager := &authManager{
		configuration: configuration,
		restClient:    restClient,
	}

	if err := manager.loadJWKS(); err != nil {
		log.Error().Err(err).Msg("Failed to load JWKS from the OIDC provider")
		return nil, err
	}

	return manager, nil
}

func (m *authManager) GetJWKS() (*keyfunc.JWKS, error) {
	if m.jwks == nil {
		if err := m.loadJWKS(); err != nil {
			return nil, err
		}
	}
	return m.jwks, nil
}

func (m *authManager) GetClientCredential() (string, error) {
	if m.tokenEndpointResponse == nil {
		return "", errors.New("no client credential")
	}
	return m.tokenEndpointResponse.AccessToken, nil
}

func (m *authManager) StartClientCredentialTask(ctx context.Context) {
	log.Info().Msg("Starting client credential synchronizer task")
	actualPeriod := 1 * time.Minute
	ticker := time.NewTicker(actualPeriod)
	m.refreshClientCredentialAuthToken(&actualPeriod)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				m.refreshClientCredentialAuthToken(&actualPeriod)
				ticker.Reset(actualPeriod)
			}
		}
	}()
}

func (m *authManager) loadJWKS() error {
	err := m.ensureOIDC()
	if err != nil {
		return err
	}

	m.jwks, err = keyfunc.Get(m.oidc.JwksURI, keyfunc.Options{
		Client:              m.restClient.GetClient(),
		RefreshErrorHandler: m.refreshErrorHandler,
		RefreshUnknownKID:   true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to get JWKS from the OIDC provider")
		return err
	}

	return nil
}

func (m *authManager) refreshErrorHandler(err error) {
	log.Error().Err(err).Msg("Failed to refresh JWKS from the OIDC provider")
}

func (m *authManager) callOIDCEndpoint() (*OpenIDConfiguration, error) {
	response, err := m.restClient.R().
		SetHeader("Content-Type", "application/json").
		SetResult(&OpenIDConfiguration{}).
		Get(strings.TrimRight(m.configuration.OIDCBaseURL, "/") + oidcURLPart)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get OIDC configuration")
		return nil, err
	}

	if !response.IsSuccess() {
		log.Error().Msgf("Failed to get OIDC configuration: %v", response.Status())
		return nil, errors.New("oidc discovery failed")
	}

	return response.Result().(*OpenIDConfiguration), nil
}

func (m *authManager) callTokenEndpoint() (*TokenEndpointResponse, error) {
	response, err := m.restClient.R().
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Cache-Control", "no-cache").
		SetAuthScheme("Basic").
		SetAuthToken(m.configuration.ClientCredentialAuthHeaderValue).
		SetResult(&TokenEndpointResponse{}).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post(m.oidc.TokenEndpoint)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get JWT token from the token endpoint")
		return nil, err
	}

	if !response.IsSuccess() {
		log.Error().Msgf("Failed to get JWT token from the token endpoint: %v", response.Status())
		return nil, errors.New("token endpoint call failed")
	}

	return response.Result().(*TokenEndpointResponse), nil
}

func (m *authManager) refreshClientCredentialAuthToken(actualPeriod *time.Duration) {
	if err := m.ensureOIDC(); err != nil {
		return
	}

	tokenEndpointResponse, err := m.callTokenEndpoint()
	if tokenEndpointResponse == nil || err != nil {
		log.Error().Err(err).Msg("Failed to load JWT token from the token endpoint")
		return
	}

	if tokenEndpointResponse.TokenType != "Bearer" {
		log.Error().Msg("Invalid token type")
		return
	}

	expiresIn := time.Duration(tokenEndpointResponse.ExpiresIn) * time.Second
	if actualPeriod.Milliseconds() != expiresIn.Milliseconds() {
		*actualPeriod = expiresIn
	}

	m.tokenEndpointResponse = tokenEndpointResponse
}

func (m *authManager) ensureOIDC() error {
	if m.oidc == nil {
		oidc, err := m.callOIDCEndpoint()
		if err != nil {
			return err
		}
		m.oidcMutex.Lock()
		m.oidc = oidc
		m.oidcMutex.Unlock()
	}
	return nil
}
