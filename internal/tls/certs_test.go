package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holomush/holoauth/pkg/errutil"
)

func TestGenerateSelfSigned(t *testing.T) {
	cert, err := GenerateSelfSigned([]string{"localhost", "127.0.0.1", "auth.internal"})
	if err != nil {
		t.Fatalf("GenerateSelfSigned() error = %v", err)
	}

	c := cert.Certificate
	if c.Subject.CommonName != "localhost" {
		t.Errorf("CN = %q, want localhost", c.Subject.CommonName)
	}
	if len(c.DNSNames) != 2 || c.DNSNames[0] != "localhost" || c.DNSNames[1] != "auth.internal" {
		t.Errorf("DNSNames = %v", c.DNSNames)
	}
	if len(c.IPAddresses) != 1 || !c.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("IPAddresses = %v", c.IPAddresses)
	}
	if got := c.NotAfter.Sub(c.NotBefore); got < SelfSignedValidity {
		t.Errorf("validity = %v, want at least %v", got, SelfSignedValidity)
	}

	pool := x509.NewCertPool()
	pool.AddCert(c)
	if _, err := c.Verify(x509.VerifyOptions{DNSName: "auth.internal", Roots: pool}); err != nil {
		t.Errorf("certificate does not verify against itself: %v", err)
	}
}

func TestGenerateSelfSigned_NoHosts(t *testing.T) {
	_, err := GenerateSelfSigned(nil)
	errutil.AssertErrorCode(t, err, "TLS_NO_HOSTS")
}

func TestSaveAndLoadServerTLS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	cert, err := GenerateSelfSigned([]string{"localhost"})
	if err != nil {
		t.Fatalf("GenerateSelfSigned() error = %v", err)
	}
	if err := cert.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for _, name := range []string{CertFileName, KeyFileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("%s permissions = %o, want 600", name, perm)
		}
	}

	cfg, err := LoadServerTLS(filepath.Join(dir, CertFileName), filepath.Join(dir, KeyFileName))
	if err != nil {
		t.Fatalf("LoadServerTLS() error = %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("Certificates = %d, want 1", len(cfg.Certificates))
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
}

func TestLoadServerTLS_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadServerTLS(filepath.Join(dir, "nope.crt"), filepath.Join(dir, "nope.key"))
	errutil.AssertErrorCode(t, err, "TLS_LOAD_FAILED")
}

func TestEnsureSelfSigned_GeneratesOnce(t *testing.T) {
	dir := t.TempDir()
	if _, err := EnsureSelfSigned(dir, []string{"localhost"}); err != nil {
		t.Fatalf("EnsureSelfSigned() error = %v", err)
	}
	first, err := os.ReadFile(filepath.Join(dir, CertFileName))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := EnsureSelfSigned(dir, []string{"localhost"}); err != nil {
		t.Fatalf("second EnsureSelfSigned() error = %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dir, CertFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("existing certificate was regenerated")
	}
}

func TestEnsureSelfSigned_ReplacesGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, CertFileName), []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureSelfSigned(dir, []string{"localhost"}); err != nil {
		t.Fatalf("EnsureSelfSigned() error = %v", err)
	}
	usable, err := certUsable(filepath.Join(dir, CertFileName), time.Now())
	if err != nil || !usable {
		t.Errorf("certUsable() = %v, %v; want true", usable, err)
	}
}

func TestCertUsable_Expired(t *testing.T) {
	dir := t.TempDir()
	cert, err := GenerateSelfSigned([]string{"localhost"})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, CertFileName)
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate.Raw})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if ok, _ := certUsable(path, time.Now()); !ok {
		t.Error("fresh certificate reported unusable")
	}
	if ok, _ := certUsable(path, time.Now().Add(2*SelfSignedValidity)); ok {
		t.Error("expired certificate reported usable")
	}
	if ok, err := certUsable(filepath.Join(dir, "missing.crt"), time.Now()); ok || err != nil {
		t.Errorf("missing file: got %v, %v", ok, err)
	}
}
