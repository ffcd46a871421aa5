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

package router

import "strings"

// reverseHostPattern transforms a host match pattern into its reversed form
// so that wildcard subdomain matching ("*.example.com") becomes a trailing
// catch-all segment of an ordinary path trie (spec.md §4.1).
//
//	"api.example.com" -> "moc.elpmaxe.ipa"
//	"*.example.com"    -> "moc.elpmaxe.*subdomain"
func reverseHostPattern(host string) string {
	return ReverseHostPattern(host)
}

// ReverseHostPattern is the exported form, reused by internal/sni to key
// its certificate trie with the same wildcard-subdomain semantics.
func ReverseHostPattern(host string) string {
	if strings.HasPrefix(host, "*.") {
		rest := reverseLabels(strings.TrimPrefix(host, "*."))
		return rest + ".*subdomain"
	}
	return reverseLabels(host)
}

// reverseHostValue reverses a concrete request Host header value the same
// way, but without any wildcard handling, for use as a trie lookup key.
func reverseHostValue(host string) string {
	return ReverseHostValue(host)
}

// ReverseHostValue is the exported form, reused by internal/sni to key
// lookups of a concrete ClientHelloInfo.ServerName.
func ReverseHostValue(host string) string {
	return reverseLabels(host)
}

// reverseLabels reverses a dotted string character-by-character and swaps
// "." back in place, e.g. "a.b.example.com" -> "moc.elpmaxe.b.a". This is
// equivalent to reversing the label order after reversing each rune, which
// is what the byte-reversal approach used upstream achieves without an
// explicit split/join.
func reverseLabels(host string) string {
	b := []byte(host)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
