// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import "errors"

// ErrCircuitOpen is returned when a call is rejected without reaching the
// upstream because the family's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")
