// Package tls loads the certificates for the internal mTLS listener and keeps
// them fresh when the files are rotated on disk.
package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type TLSConfig struct {
	Enabled       bool          `envconfig:"TLS_ENABLED" default:"false"`
	CertFile      string        `envconfig:"TLS_CERT_FILE" default:"/etc/tls/tls.crt"`
	KeyFile       string        `envconfig:"TLS_KEY_FILE" default:"/etc/tls/tls.key"`
	CAFile        string        `envconfig:"TLS_CA_FILE" default:"/etc/tls/ca.crt"`
	ClientAuth    bool          `envconfig:"TLS_CLIENT_AUTH" default:"true"`
	WatchInterval time.Duration `envconfig:"TLS_WATCH_INTERVAL" default:"30s"`
}

// Reloader serves the most recently loaded key pair.
type Reloader struct {
	cfg  *TLSConfig
	cert atomic.Pointer[tls.Certificate]
}

func NewReloader(cfg *TLSConfig) (*Reloader, error) {
	r := &Reloader{cfg: cfg}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.cfg.CertFile, r.cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	r.cert.Store(&cert)
	return nil
}

func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.cert.Load(), nil
}

// LoadTLSConfig builds the server config. Certificates are read through the
// reloader, so a rotation takes effect without restarting the listener.
func LoadTLSConfig(cfg *TLSConfig, r *Reloader, logger *zap.Logger) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
	if cfg.ClientAuth {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("CA bundle contains no certificates")
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	logger.Info("TLS configuration loaded",
		zap.String("cert_file", cfg.CertFile),
		zap.Bool("client_auth", cfg.ClientAuth))
	return tlsCfg, nil
}

// WatchCertificates polls the key pair's modification times and reloads on
// change until ctx is done.
func WatchCertificates(ctx context.Context, cfg *TLSConfig, r *Reloader, logger *zap.Logger) {
	interval := cfg.WatchInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := modTimes(cfg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := modTimes(cfg)
			if current == last {
				continue
			}
			if err := r.Reload(); err != nil {
				// Keep the previous pair; the files may be mid-rotation.
				logger.Warn("Failed to reload certificates", zap.Error(err))
				continue
			}
			last = current
			logger.Info("TLS certificates reloaded", zap.String("cert_file", cfg.CertFile))
		}
	}
}

type stamps struct{ cert, key time.Time }

func modTimes(cfg *TLSConfig) stamps {
	var s stamps
	if fi, err := os.Stat(cfg.CertFile); err == nil {
		s.cert = fi.ModTime()
	}
	if fi, err := os.Stat(cfg.KeyFile); err == nil {
		s.key = fi.ModTime()
	}
	return s
}
