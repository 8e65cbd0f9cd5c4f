// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/Hardik-Jain1/store-provisioning-platform/cmd/store-provisioner/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
