package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePair(t *testing.T, dir, cn string) *TLSConfig {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	cfg := &TLSConfig{
		CertFile:      filepath.Join(dir, "tls.crt"),
		KeyFile:       filepath.Join(dir, "tls.key"),
		CAFile:        filepath.Join(dir, "tls.crt"),
		ClientAuth:    true,
		WatchInterval: 10 * time.Millisecond,
	}
	require.NoError(t, os.WriteFile(cfg.CertFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(cfg.KeyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return cfg
}

func commonName(t *testing.T, r *Reloader) string {
	t.Helper()
	cert, err := r.GetCertificate(nil)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName
}

func TestLoadTLSConfig(t *testing.T) {
	cfg := writePair(t, t.TempDir(), "first")
	r, err := NewReloader(cfg)
	require.NoError(t, err)

	tlsCfg, err := LoadTLSConfig(cfg, r, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, tlsCfg.ClientAuth)
	assert.NotNil(t, tlsCfg.ClientCAs)
	assert.Equal(t, "first", commonName(t, r))
}

func TestLoadTLSConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewReloader(&TLSConfig{CertFile: filepath.Join(dir, "nope.crt"), KeyFile: filepath.Join(dir, "nope.key")})
	assert.Error(t, err)

	cfg := writePair(t, dir, "x")
	r, err := NewReloader(cfg)
	require.NoError(t, err)
	cfg.CAFile = cfg.KeyFile
	_, err = LoadTLSConfig(cfg, r, zap.NewNop())
	assert.Error(t, err, "a key file is not a CA bundle")
}

func TestWatchCertificates_ReloadsRotatedPair(t *testing.T) {
	dir := t.TempDir()
	cfg := writePair(t, dir, "first")
	r, err := NewReloader(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		WatchCertificates(ctx, cfg, r, zap.NewNop())
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	writePair(t, dir, "second")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(cfg.CertFile, later, later))
	require.NoError(t, os.Chtimes(cfg.KeyFile, later, later))

	assert.Eventually(t, func() bool {
		cert, _ := r.GetCertificate(nil)
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		return err == nil && leaf.Subject.CommonName == "second"
	}, 2*time.Second, 10*time.Millisecond)
}
