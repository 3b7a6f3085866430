/*
Copyright 2024 Alexandre Mahdhaoui

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package certutil issues short-lived certificates for tests that exercise
// TLS connections to the bare-metal API and the broker.
package certutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Inspired from: https://github.com/madflojo/testcerts/blob/main/testcerts.go

const validity = 2 * time.Hour

// ------------------------------------------------------- CA ------------------------------------------------------- //

// CA is a throwaway certificate authority.
type CA struct {
	key      *ecdsa.PrivateKey
	pool     *x509.CertPool
	rootCert *x509.Certificate
}

// NewCA creates a self-signed CA.
func NewCA() (*CA, error) {
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		Subject:               pkix.Name{Organization: []string{"bmnotify test CA"}},
		SerialNumber:          serial,
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(validity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating CA key: %w", err)
	}

	raw, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("self-signing CA certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert)

	return &CA{key: key, pool: pool, rootCert: cert}, nil
}

// Pool returns a pool trusting only the CA.
func (ca *CA) Pool() *x509.CertPool {
	return ca.pool
}

// Cert returns the CA's root certificate in PEM format.
func (ca *CA) Cert() []byte {
	return certToPEM(ca.rootCert)
}

// ------------------------------------------------ CertifiedKeypair ------------------------------------------------ //

// NewCertifiedKey issues a key pair valid for server and client auth. Hosts
// parsing as IP addresses become IP SANs, the others DNS SANs.
func (ca *CA) NewCertifiedKey(hosts ...string) (*ecdsa.PrivateKey, *x509.Certificate, error) {
	serial, err := newSerial()
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		Subject:      pkix.Name{Organization: []string{"bmnotify test"}},
		SerialNumber: serial,
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(validity),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}

	raw, err := x509.CreateCertificate(rand.Reader, template, ca.rootCert, key.Public(), ca.key)
	if err != nil {
		return nil, nil, fmt.Errorf("signing certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing certificate: %w", err)
	}

	return key, cert, nil
}

// NewCertifiedKeyPEM is NewCertifiedKey in PEM format.
func (ca *CA) NewCertifiedKeyPEM(hosts ...string) (key []byte, cert []byte, err error) {
	k, c, err := ca.NewCertifiedKey(hosts...)
	if err != nil {
		return nil, nil, err
	}

	keyPEM, err := privateKeyToPem(k)
	if err != nil {
		return nil, nil, err
	}

	return keyPEM, certToPEM(c), nil
}

// NewTLSCertificate issues a key pair ready to serve from a tls.Config.
func (ca *CA) NewTLSCertificate(hosts ...string) (tls.Certificate, error) {
	keyPEM, certPEM, err := ca.NewCertifiedKeyPEM(hosts...)
	if err != nil {
		return tls.Certificate{}, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("loading key pair: %w", err)
	}
	return cert, nil
}

// ------------------------------------------------------ Files ----------------------------------------------------- //

// Files are PEM files written by WriteFiles.
type Files struct {
	CA   string
	Cert string
	Key  string
}

// WriteFiles writes the CA certificate and a key pair issued for hosts
// under dir.
func (ca *CA) WriteFiles(dir string, hosts ...string) (Files, error) {
	keyPEM, certPEM, err := ca.NewCertifiedKeyPEM(hosts...)
	if err != nil {
		return Files{}, err
	}

	files := Files{
		CA:   filepath.Join(dir, "ca.crt"),
		Cert: filepath.Join(dir, "tls.crt"),
		Key:  filepath.Join(dir, "tls.key"),
	}

	for path, data := range map[string][]byte{
		files.CA:   ca.Cert(),
		files.Cert: certPEM,
		files.Key:  keyPEM,
	} {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return Files{}, fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return files, nil
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generating serial number: %w", err)
	}
	return serial, nil
}

func privateKeyToPem(key *ecdsa.PrivateKey) ([]byte, error) {
	kb, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshalling private key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: kb}), nil
}

func certToPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}
