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

// Package datagen generates random test data for bare-metal fixtures.
package datagen

import (
	"net"

	"github.com/google/uuid"
)

// RandUUID returns a random version 4 UUID string.
func RandUUID() string {
	return uuid.NewString()
}

// RandName returns prefix followed by a short random suffix, e.g. "bmnotify-node-1a2b3c4d".
func RandName(prefix string) string {
	suffix := uuid.NewString()[:8]
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}

// RandMAC returns a random locally administered unicast MAC address.
func RandMAC() string {
	b := uuid.New()
	mac := net.HardwareAddr{
		(b[0] | 0x02) &^ 0x01,
		b[1], b[2], b[3], b[4], b[5],
	}
	return mac.String()
}
