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

package certutil_test

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/bmnotify/internal/util/certutil"
)

func parsePEM(t *testing.T, data []byte) *x509.Certificate {
	t.Helper()

	block, rest := pem.Decode(data)
	require.NotNil(t, block)
	assert.Empty(t, rest)
	require.Equal(t, "CERTIFICATE", block.Type)

	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

func TestNewCA(t *testing.T) {
	ca, err := certutil.NewCA()
	require.NoError(t, err)

	cert := parsePEM(t, ca.Cert())
	assert.True(t, cert.IsCA)
	assert.True(t, cert.BasicConstraintsValid)
	assert.True(t, cert.NotBefore.Before(time.Now()))
	assert.True(t, cert.NotAfter.After(time.Now()))

	_, err = cert.Verify(x509.VerifyOptions{Roots: ca.Pool()})
	assert.NoError(t, err, "the pool should trust the CA itself")
}

func TestCA_NewCertifiedKey(t *testing.T) {
	ca, err := certutil.NewCA()
	require.NoError(t, err)

	key, cert, err := ca.NewCertifiedKey("ironic.local", "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, key)

	assert.Equal(t, []string{"ironic.local"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.True(t, cert.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")))

	for _, host := range []string{"ironic.local", "127.0.0.1"} {
		_, err := cert.Verify(x509.VerifyOptions{
			Roots:     ca.Pool(),
			DNSName:   host,
			KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		assert.NoError(t, err, host)
	}

	_, err = cert.Verify(x509.VerifyOptions{Roots: ca.Pool(), DNSName: "other.local"})
	assert.Error(t, err)

	_, other, err := ca.NewCertifiedKey("ironic.local")
	require.NoError(t, err)
	assert.NotEqual(t, cert.SerialNumber, other.SerialNumber)
}

func TestCA_NewCertifiedKeyPEM(t *testing.T) {
	ca, err := certutil.NewCA()
	require.NoError(t, err)

	keyPEM, certPEM, err := ca.NewCertifiedKeyPEM("localhost")
	require.NoError(t, err)

	block, _ := pem.Decode(keyPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type)

	_, err = tls.X509KeyPair(certPEM, keyPEM)
	assert.NoError(t, err)
}

func TestCA_NewTLSCertificate(t *testing.T) {
	ca, err := certutil.NewCA()
	require.NoError(t, err)

	cert, err := ca.NewTLSCertificate("localhost")
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}

func TestCA_WriteFiles(t *testing.T) {
	ca, err := certutil.NewCA()
	require.NoError(t, err)

	files, err := ca.WriteFiles(t.TempDir(), "localhost")
	require.NoError(t, err)

	caPEM, err := os.ReadFile(files.CA)
	require.NoError(t, err)
	assert.Equal(t, ca.Cert(), caPEM)

	_, err = tls.LoadX509KeyPair(files.Cert, files.Key)
	assert.NoError(t, err)
}
