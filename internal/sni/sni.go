// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package sni implements the SNI-directed TLS terminator (spec.md CORE
// subsystem 6): a reverse-prefix trie keyed by SNI pattern, reusing
// pkg/router's host-reversal trie shape so "*.example.com" matches
// exactly the way it does for routing.
package sni

import (
	"crypto/tls"
	"fmt"

	"pingsix/internal/config"
	"pingsix/pkg/router"
)

// Resolver answers tls.Config.GetCertificate by SNI pattern lookup.
type Resolver struct {
	trie *router.Trie
}

// NewResolver builds a resolver from every SSLCert's SNI pattern set.
// Invalid certificate/key pairs are logged and skipped rather than
// aborting the whole reload, the same failure posture pkg/router takes
// for a bad URI pattern.
func NewResolver(certs map[string]*config.SSLCert) (*Resolver, []error) {
	trie := router.NewTrie('.')
	var errs []error
	for _, cert := range certs {
		tlsCert, err := tls.X509KeyPair([]byte(cert.Cert), []byte(cert.Key))
		if err != nil {
			errs = append(errs, fmt.Errorf("sni: cert %s: %w", cert.ID, err))
			continue
		}
		for _, sni := range cert.SNIs {
			if err := trie.Insert(router.ReverseHostPattern(sni), 0, &tlsCert); err != nil {
				errs = append(errs, fmt.Errorf("sni: cert %s pattern %q: %w", cert.ID, sni, err))
			}
		}
	}
	return &Resolver{trie: trie}, errs
}

// GetCertificate is wired into tls.Config.GetCertificate.
func (r *Resolver) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	entries, _, ok := r.trie.Match(router.ReverseHostValue(hello.ServerName))
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("sni: no certificate for %q", hello.ServerName)
	}
	return entries[0].Value.(*tls.Certificate), nil
}
