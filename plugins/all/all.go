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

// Package all blank-imports every concrete plugin package so its init()
// registers into the process-wide plugin.Global() registry. cmd/pingsix
// imports this package, and only this package, for its plugin roster.
package all

import (
	_ "pingsix/plugins/basicauth"
	_ "pingsix/plugins/brotli"
	_ "pingsix/plugins/cacheenable"
	_ "pingsix/plugins/cors"
	_ "pingsix/plugins/csrf"
	_ "pingsix/plugins/faultinjection"
	_ "pingsix/plugins/gzip"
	_ "pingsix/plugins/iprestriction"
	_ "pingsix/plugins/jwtauth"
	_ "pingsix/plugins/keyauth"
	_ "pingsix/plugins/limitcount"
	_ "pingsix/plugins/prometheus"
	_ "pingsix/plugins/proxyrewrite"
	_ "pingsix/plugins/redirect"
	_ "pingsix/plugins/requestid"
	_ "pingsix/plugins/responserewrite"
	_ "pingsix/plugins/trafficsplit"
)
