// Copyright 2024 Alexandre Mahdhaoui
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tlsutil builds client TLS configurations from PEM files.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrCertNotFound is returned when the certificate file does not exist.
	ErrCertNotFound = errors.New("certificate file not found")
	// ErrKeyNotFound is returned when the key file does not exist.
	ErrKeyNotFound = errors.New("key file not found")
	// ErrCANotFound is returned when the CA file does not exist.
	ErrCANotFound = errors.New("CA file not found")
	// ErrIncompleteKeyPair is returned when only one of the certificate and
	// key files is set.
	ErrIncompleteKeyPair = errors.New("certificate and key must be set together")
	// ErrLoadCertFailed is returned when loading the certificate fails.
	ErrLoadCertFailed = errors.New("failed to load certificate")
	// ErrLoadCAFailed is returned when loading the CA file fails.
	ErrLoadCAFailed = errors.New("failed to load CA file")
	// ErrParseCAFailed is returned when parsing the CA certificate fails.
	ErrParseCAFailed = errors.New("failed to parse CA certificate")
)

// Config holds the client TLS parameters.
type Config struct {
	// CAPath is the CA bundle verifying the server. Empty means the system pool.
	CAPath string
	// CertPath and KeyPath are the client key pair, for mutual TLS.
	CertPath string
	KeyPath  string
	// ServerName overrides the name verified in the server certificate.
	ServerName string
	// InsecureSkipVerify disables server verification.
	InsecureSkipVerify bool
}

// Enabled reports whether any TLS setting is present.
func (c Config) Enabled() bool {
	return c != Config{}
}

// BuildClientTLSConfig builds a client tls.Config. It returns nil, nil when
// no setting is present, so callers keep their plain-text defaults.
func BuildClientTLSConfig(config Config) (*tls.Config, error) {
	if !config.Enabled() {
		return nil, nil
	}

	if (config.CertPath == "") != (config.KeyPath == "") {
		return nil, ErrIncompleteKeyPair
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         config.ServerName,
		InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // opt-in for lab deployments
	}

	if config.CAPath != "" {
		if _, err := os.Stat(config.CAPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCANotFound, config.CAPath)
		}

		caBytes, err := os.ReadFile(config.CAPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadCAFailed, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("%w: %s", ErrParseCAFailed, config.CAPath)
		}
		tlsConfig.RootCAs = pool
	}

	if config.CertPath != "" {
		if _, err := os.Stat(config.CertPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCertNotFound, config.CertPath)
		}
		if _, err := os.Stat(config.KeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, config.KeyPath)
		}

		cert, err := tls.LoadX509KeyPair(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadCertFailed, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
