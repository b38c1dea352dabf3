package agent

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
)

// TLSConfig holds the agent's TLS settings. When ClientCACert is set and
// RequireClientCert is true the agent demands mutual TLS.
type TLSConfig struct {
	ServerCert        string
	ServerKey         string
	ClientCACert      string
	RequireClientCert bool
}

// Enabled reports whether a server certificate is configured.
func (c TLSConfig) Enabled() bool {
	return c.ServerCert != "" && c.ServerKey != ""
}

func (s *Server) configureTLS(config TLSConfig) (*tls.Config, error) {
	if !config.Enabled() {
		return nil, fmt.Errorf("server cert and key required for TLS")
	}

	cert, err := tls.LoadX509KeyPair(config.ServerCert, config.ServerKey)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if config.RequireClientCert && config.ClientCACert != "" {
		caCert, err := os.ReadFile(config.ClientCACert)
		if err != nil {
			return nil, fmt.Errorf("read client CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse client CA certificate")
		}

		tlsConfig.ClientCAs = caCertPool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert

		log.Info().
			Str("ca_cert", config.ClientCACert).
			Msg("mTLS client authentication enabled")
	}

	return tlsConfig, nil
}

// ListenAndServeTLS starts the server with TLS and optional mTLS.
func (s *Server) ListenAndServeTLS(addr string, config TLSConfig) error {
	tlsConfig, err := s.configureTLS(config)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Addr:      addr,
		Handler:   s.Handler(),
		TLSConfig: tlsConfig,
	}

	log.Info().
		Str("addr", addr).
		Bool("mtls_required", config.RequireClientCert).
		Msg("starting agent with TLS")

	return s.srv.ListenAndServeTLS("", "")
}
